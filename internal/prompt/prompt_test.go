package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	template := "Service: {SERVICE}\nRules: {RULES}\nFeedback: {FEEDBACK}\n{CONTROLS_JSON}"
	snap := Snapshot{Service: "AWS S3 Bucket", ControlsJSON: "[]", Feedback: "rename control X"}
	output := Render(template, []string{"Prefer AWS managed keys"}, snap)
	want := "Service: AWS S3 Bucket\nRules: - Prefer AWS managed keys\nFeedback: rename control X\n[]"
	if output != want {
		t.Fatalf("unexpected render:\n%s", output)
	}
	if got := Render("{RULES}", nil, Snapshot{}); got != "None" {
		t.Fatalf("expected None for empty rules, got %q", got)
	}
}

func TestRenderDoesNotExpandSubstitutedValues(t *testing.T) {
	template := "Service: {SERVICE}\nControls: {CONTROLS_JSON}\nFeedback: {FEEDBACK}"
	snap := Snapshot{
		Service:      "Bucket {FEEDBACK}",
		ControlsJSON: `[{"controlDescription":"see {RULES}"}]`,
		Feedback:     "keep {CONTROLS_JSON} literal",
	}
	output := Render(template, []string{"secret rule"}, snap)
	want := "Service: Bucket {FEEDBACK}\nControls: [{\"controlDescription\":\"see {RULES}\"}]\nFeedback: keep {CONTROLS_JSON} literal"
	if output != want {
		t.Fatalf("unexpected render:\n%s", output)
	}
}

func TestBuiltinTemplatesCarryPlaceholders(t *testing.T) {
	for _, kind := range []Kind{KindGenerate, KindRegenerate, KindTerraform} {
		content, err := LoadTemplate(kind)
		if err != nil {
			t.Fatalf("load %s: %v", kind, err)
		}
		if !strings.Contains(content, "{SERVICE}") {
			t.Fatalf("%s template lacks {SERVICE}", kind)
		}
	}
	regen, _ := LoadTemplate(KindRegenerate)
	if !strings.Contains(regen, "{FEEDBACK}") || !strings.Contains(regen, "{CONTROLS_JSON}") {
		t.Fatalf("regenerate template must carry feedback and controls")
	}
}

func TestBuiltinSchemasAreJSON(t *testing.T) {
	for _, name := range []string{SchemaControls, SchemaInfrastructure} {
		schema, err := LoadSchema(name)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(schema.Content), &v); err != nil {
			t.Fatalf("%s schema is not JSON: %v", name, err)
		}
	}
}

func TestTemplateOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "generate.txt"), []byte("custom {SERVICE}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CLOUDGUARD_PROMPT_DIR", dir)
	content, err := LoadTemplate(KindGenerate)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if content != "custom {SERVICE}" {
		t.Fatalf("override not used: %q", content)
	}
	if _, err := LoadTemplate(KindTerraform); err == nil {
		t.Fatalf("expected error for template missing from override dir")
	}
}
