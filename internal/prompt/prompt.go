package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.txt schemas/*.json
var assets embed.FS

type Kind string

const (
	KindGenerate   Kind = "generate"
	KindRegenerate Kind = "regenerate"
	KindTerraform  Kind = "terraform"
)

const (
	SchemaControls       = "controls"
	SchemaInfrastructure = "infrastructure"
)

type Snapshot struct {
	Service      string
	ControlsJSON string
	Feedback     string
}

// Schema is a JSON schema the generator output must satisfy.
type Schema struct {
	Name    string
	Content string
}

// LoadTemplate reads the template for kind from CLOUDGUARD_PROMPT_DIR when
// set, otherwise from the built-in copy.
func LoadTemplate(kind Kind) (string, error) {
	name := string(kind) + ".txt"
	if dir := os.Getenv("CLOUDGUARD_PROMPT_DIR"); dir != "" {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt template: %w", err)
		}
		return string(content), nil
	}
	content, err := assets.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q: %w", kind, err)
	}
	return string(content), nil
}

func LoadSchema(name string) (Schema, error) {
	file := name + ".schema.json"
	if dir := os.Getenv("CLOUDGUARD_SCHEMA_DIR"); dir != "" {
		content, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
		}
		return Schema{Name: name, Content: string(content)}, nil
	}
	content, err := assets.ReadFile("schemas/" + file)
	if err != nil {
		return Schema{}, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	return Schema{Name: name, Content: string(content)}, nil
}

// Render fills every placeholder in one pass; substituted values are never
// scanned for placeholders again.
func Render(template string, rules []string, snap Snapshot) string {
	return strings.NewReplacer(
		"{RULES}", renderRules(rules),
		"{SERVICE}", snap.Service,
		"{CONTROLS_JSON}", snap.ControlsJSON,
		"{FEEDBACK}", snap.Feedback,
	).Replace(template)
}

func renderRules(rules []string) string {
	if len(rules) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, rule := range rules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
