package github

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/brianndofor/cloudguard/internal/redact"
)

// Runner executes one gh invocation. token, when non-empty, is the
// credential the invocation authenticates with.
type Runner interface {
	Run(ctx context.Context, token string, args []string, stdin []byte) ([]byte, error)
}

type RealRunner struct{}

func (r RealRunner) Run(ctx context.Context, token string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if token != "" {
		cmd.Env = append(os.Environ(), "GH_TOKEN="+token)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := redact.Redact(redact.RedactToken(stderr.String()+stdout.String(), token))
		return nil, fmt.Errorf("gh %v failed: %w\n%s", args, err, detail)
	}
	return stdout.Bytes(), nil
}
