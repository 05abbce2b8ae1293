package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brianndofor/cloudguard/internal/prompt"
)

// FakeRunner serves <Dir>/<schema name>.json regardless of the prompt.
type FakeRunner struct {
	Dir string
}

func NewFakeRunner(dir string) *FakeRunner {
	return &FakeRunner{Dir: dir}
}

func (f *FakeRunner) Run(ctx context.Context, promptText string, schema prompt.Schema) ([]byte, error) {
	_ = ctx
	_ = promptText
	data, err := os.ReadFile(filepath.Join(f.Dir, schema.Name+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read generator fixture: %w", err)
	}
	return data, nil
}

func (f *FakeRunner) HealthCheck(ctx context.Context, schema prompt.Schema) error {
	_ = ctx
	_ = schema
	return nil
}
