package github

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FixtureRunner answers gh invocations from canned files under Root.
type FixtureRunner struct {
	Root string
}

func NewFixtureRunner(root string) FixtureRunner {
	return FixtureRunner{Root: root}
}

func (f FixtureRunner) Run(ctx context.Context, token string, args []string, stdin []byte) ([]byte, error) {
	_ = ctx
	_ = token
	_ = stdin
	key := strings.Join(args, " ")
	var file string
	switch {
	case strings.Contains(key, "auth status"):
		return []byte("logged in"), nil
	case strings.Contains(key, "api graphql"):
		file = "review_threads.json"
	case strings.Contains(key, "/git/ref/heads/"):
		file = "base_ref.json"
	case strings.Contains(key, "-X POST") && strings.HasSuffix(key, "/git/refs --input -"):
		file = "created_ref.json"
	case strings.Contains(key, "/requested_reviewers"):
		file = "requested_reviewers.json"
	case strings.Contains(key, "-X PUT") && strings.Contains(key, "/contents/"):
		file = "put_contents.json"
	case strings.Contains(key, "/contents/"):
		file = "contents.json"
	case strings.Contains(key, "-X POST") && strings.HasSuffix(key, "/pulls --input -"):
		file = "pull_created.json"
	case strings.Contains(key, "/issues/") && strings.Contains(key, "/comments"):
		file = "issue_comments.json"
	case strings.Contains(key, "/reviews"):
		file = "reviews.json"
	case strings.Contains(key, "/pulls/"):
		file = "pull.json"
	default:
		return nil, fmt.Errorf("no fixture for gh args: %s", key)
	}
	return os.ReadFile(filepath.Join(f.Root, file))
}
