package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/brianndofor/cloudguard/internal/prompt"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiledSchemas is keyed by schema name and content.
var compiledSchemas, _ = lru.New[string, *jsonschema.Schema](8)

func compileSchema(schema prompt.Schema) (*jsonschema.Schema, error) {
	key := schema.Name + "\x00" + schema.Content
	if compiled, ok := compiledSchemas.Get(key); ok {
		return compiled, nil
	}
	compiled, err := jsonschema.CompileString(schema.Name+".schema.json", schema.Content)
	if err != nil {
		return nil, err
	}
	compiledSchemas.Add(key, compiled)
	return compiled, nil
}

// decodeControls is the only place a controls response is inspected.
func decodeControls(raw []byte) (Outcome, error) {
	var resp controlsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse generator JSON: %w", err)
	}
	if reason := strings.TrimSpace(resp.Error); reason != "" {
		return Outcome{Rejected: &Rejection{Reason: reason}}, nil
	}
	if len(resp.Controls) == 0 {
		return Outcome{}, fmt.Errorf("generator returned no controls and no rejection reason")
	}
	if err := controls.Validate(resp.Controls); err != nil {
		return Outcome{}, err
	}
	return Outcome{Controls: resp.Controls}, nil
}

func decodeInfrastructure(raw []byte) (string, *Rejection, error) {
	var resp infrastructureResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to parse generator JSON: %w", err)
	}
	if reason := strings.TrimSpace(resp.Error); reason != "" {
		return "", &Rejection{Reason: reason}, nil
	}
	code := stripCodeFence(resp.Code)
	if code == "" {
		return "", nil, fmt.Errorf("generator returned empty infrastructure code")
	}
	return code, nil, nil
}

func validateJSON(schema prompt.Schema, data []byte) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("generator output failed schema validation: %w", err)
	}
	return nil
}
