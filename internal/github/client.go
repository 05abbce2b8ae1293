package github

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultBranchBase = "main"

// BackendConfig identifies the target repository and the credential used
// against it. Token is never persisted.
type BackendConfig struct {
	Owner      string
	Repo       string
	Token      string
	BranchBase string
	Reviewers  []string
}

func (c BackendConfig) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("repository owner is required")
	}
	if strings.TrimSpace(c.Repo) == "" {
		return fmt.Errorf("repository name is required")
	}
	return nil
}

func (c BackendConfig) base() string {
	if strings.TrimSpace(c.BranchBase) == "" {
		return DefaultBranchBase
	}
	return c.BranchBase
}

func (c BackendConfig) repoPath() string {
	return fmt.Sprintf("repos/%s/%s", c.Owner, c.Repo)
}

// BackendError reports a failed review-backend call.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op string, err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

type Client struct {
	Runner Runner
	// ControlsDir is the repository directory artifacts are committed under.
	ControlsDir string
}

func NewClient(runner Runner) *Client {
	return &Client{Runner: runner, ControlsDir: "security-controls"}
}

func (c *Client) CheckInstalled() error {
	_, err := exec.LookPath("gh")
	if err != nil {
		return fmt.Errorf("gh CLI not found in PATH")
	}
	return nil
}

func (c *Client) AuthStatus(ctx context.Context, token string) error {
	_, err := c.Runner.Run(ctx, token, []string{"auth", "status"}, nil)
	if err != nil {
		return backendErr("auth status", err)
	}
	return nil
}

// ParseRepo splits "owner/repo".
func ParseRepo(repo string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo: %s", repo)
	}
	return parts[0], parts[1], nil
}

// ParseReviewers reads a comma separated reviewer list.
func ParseReviewers(value string) []string {
	reviewers := []string{}
	for _, part := range strings.Split(value, ",") {
		if login := strings.TrimPrefix(strings.TrimSpace(part), "@"); login != "" {
			reviewers = append(reviewers, login)
		}
	}
	return reviewers
}
