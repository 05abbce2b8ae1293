package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/brianndofor/cloudguard/internal/config"
	"github.com/brianndofor/cloudguard/internal/prompt"
)

// Runner sends one prompt to the generation backend and returns output
// conforming to schema.
type Runner interface {
	Run(ctx context.Context, promptText string, schema prompt.Schema) ([]byte, error)
	HealthCheck(ctx context.Context, schema prompt.Schema) error
}

// escapeForShell escapes single quotes in a string for safe use in shell single-quoted strings
func escapeForShell(s string) string {
	// In bash, to include a single quote in a single-quoted string,
	// you need to end the quote, add an escaped quote, and restart: '\''
	return strings.ReplaceAll(s, "'", "'\\''")
}

func compactSchema(schema prompt.Schema) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(schema.Content)); err != nil {
		return schema.Content
	}
	return buf.String()
}

// claudeResponse represents the wrapper response from the Claude CLI
// when using --output-format json with --json-schema
type claudeResponse struct {
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	IsError          bool            `json:"is_error"`
	Result           string          `json:"result"`
	StructuredOutput json.RawMessage `json:"structured_output"`
}

// extractStructuredOutput parses the Claude CLI JSON response and extracts
// the structured_output field which contains the actual schema-conforming data
func extractStructuredOutput(raw []byte) ([]byte, error) {
	var resp claudeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse claude response wrapper: %w", err)
	}
	if resp.IsError {
		return nil, fmt.Errorf("claude returned an error response: %s", resp.Result)
	}
	if len(resp.StructuredOutput) == 0 {
		return nil, fmt.Errorf("claude response missing structured_output field")
	}
	return resp.StructuredOutput, nil
}

type ClaudeRunner struct {
	command string
	args    []string
}

func NewClaudeRunner(cfg config.GeneratorConfig) *ClaudeRunner {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return &ClaudeRunner{command: command, args: cfg.Args}
}

func (c *ClaudeRunner) shellCommand(promptText string, schema prompt.Schema) string {
	extra := ""
	for _, arg := range c.args {
		extra += " '" + escapeForShell(arg) + "'"
	}
	return fmt.Sprintf("%s%s -p --output-format json --json-schema '%s' '%s'",
		c.command, extra, escapeForShell(compactSchema(schema)), escapeForShell(promptText))
}

func (c *ClaudeRunner) Run(ctx context.Context, promptText string, schema prompt.Schema) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", c.shellCommand(promptText, schema))
	// Explicitly set stdin to nil to prevent any TTY inheritance
	cmd.Stdin = nil
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("generator failed: %w\n%s", err, stderr.String())
	}
	return extractStructuredOutput(stdout.Bytes())
}

func (c *ClaudeRunner) HealthCheck(ctx context.Context, schema prompt.Schema) error {
	output, err := c.Run(ctx, "Return JSON matching the schema with an empty list.", schema)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("generator health check timed out: %w", err)
		}
		return fmt.Errorf("generator health check failed: %w", err)
	}
	if err := validateJSON(schema, output); err != nil {
		return fmt.Errorf("generator health check: %w\nOutput: %s", err, string(output))
	}
	return nil
}
