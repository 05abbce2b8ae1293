package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/brianndofor/cloudguard/internal/prompt"
	"github.com/brianndofor/cloudguard/internal/redact"
)

// Client turns service names, artifacts and feedback into prompts and
// decodes what the backend returns. It never retries.
type Client struct {
	Runner Runner
	Rules  []string
	Redact bool
}

func NewClient(runner Runner, rules []string, redactEnabled bool) *Client {
	return &Client{Runner: runner, Rules: rules, Redact: redactEnabled}
}

// Generate produces a fresh artifact for service.
func (c *Client) Generate(ctx context.Context, service string) ([]controls.SecurityControl, error) {
	const op = "generate controls"
	if strings.TrimSpace(service) == "" {
		return nil, generationErr(op, fmt.Errorf("service name is required"))
	}
	raw, err := c.run(ctx, op, prompt.KindGenerate, prompt.SchemaControls, prompt.Snapshot{Service: service})
	if err != nil {
		return nil, err
	}
	outcome, err := decodeControls(raw)
	if err != nil {
		return nil, generationErr(op, err)
	}
	return outcome.Result(op)
}

// RegenerateWithFeedback returns a complete replacement artifact; callers
// never merge it with current.
func (c *Client) RegenerateWithFeedback(ctx context.Context, service string, current []controls.SecurityControl, feedback string) ([]controls.SecurityControl, error) {
	const op = "regenerate controls"
	if strings.TrimSpace(feedback) == "" {
		return nil, generationErr(op, fmt.Errorf("feedback is required"))
	}
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, generationErr(op, err)
	}
	snap := prompt.Snapshot{Service: service, ControlsJSON: string(currentJSON), Feedback: feedback}
	raw, err := c.run(ctx, op, prompt.KindRegenerate, prompt.SchemaControls, snap)
	if err != nil {
		return nil, err
	}
	outcome, err := decodeControls(raw)
	if err != nil {
		return nil, generationErr(op, err)
	}
	return outcome.Result(op)
}

// GenerateInfrastructureCode returns Terraform text implementing list.
func (c *Client) GenerateInfrastructureCode(ctx context.Context, service string, list []controls.SecurityControl) (string, error) {
	const op = "generate infrastructure code"
	if len(list) == 0 {
		return "", generationErr(op, fmt.Errorf("no controls to implement"))
	}
	listJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", generationErr(op, err)
	}
	raw, err := c.run(ctx, op, prompt.KindTerraform, prompt.SchemaInfrastructure, prompt.Snapshot{Service: service, ControlsJSON: string(listJSON)})
	if err != nil {
		return "", err
	}
	code, rejection, err := decodeInfrastructure(raw)
	if err != nil {
		return "", generationErr(op, err)
	}
	if rejection != nil {
		return "", &Error{Kind: KindPolicyRejected, Op: op, Reason: rejection.Reason}
	}
	return code, nil
}

func (c *Client) run(ctx context.Context, op string, kind prompt.Kind, schemaName string, snap prompt.Snapshot) ([]byte, error) {
	template, err := prompt.LoadTemplate(kind)
	if err != nil {
		return nil, generationErr(op, err)
	}
	schema, err := prompt.LoadSchema(schemaName)
	if err != nil {
		return nil, generationErr(op, err)
	}
	rules := redact.RedactRuleList(c.Rules, c.Redact)
	promptText := prompt.Render(template, rules, snap)
	promptText = redact.RedactPromptBlock(promptText, c.Redact)

	raw, err := c.Runner.Run(ctx, promptText, schema)
	if err != nil {
		return nil, generationErr(op, err)
	}
	if err := validateJSON(schema, raw); err != nil {
		return nil, generationErr(op, err)
	}
	return raw, nil
}
