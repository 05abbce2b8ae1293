package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

type ExecRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

type RealExecRunner struct{}

func (r RealExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("command failed: %s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(output), nil
}

// FakeExecRunner records commands instead of running them.
type FakeExecRunner struct {
	mu       sync.Mutex
	Commands []string
}

func (f *FakeExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	_ = ctx
	_ = dir
	f.mu.Lock()
	f.Commands = append(f.Commands, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	f.mu.Unlock()
	if name == "gh" && len(args) > 0 && args[0] == "browse" {
		return "opened", nil
	}
	return "mock command output", nil
}
