package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/google/uuid"
)

// MaxFeedbackChars bounds the feedback excerpt; the oldest comments are
// dropped first.
const MaxFeedbackChars = 12000

type ProposalState string

const (
	StateOpen   ProposalState = "OPEN"
	StateClosed ProposalState = "CLOSED"
)

type Proposal struct {
	ID     string
	URL    string
	Branch string
	Owner  string
	Repo   string
}

// ProposalDetails is one snapshot of a proposal. FeedbackThrough is the
// backend timestamp of the newest entry in Feedback, or the since value
// passed in when nothing newer was found.
type ProposalDetails struct {
	Merged          bool
	State           ProposalState
	Feedback        string
	FeedbackThrough time.Time
}

type gitRef struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type createPullRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

type pullResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Merged  bool   `json:"merged"`
}

type reviewersRequest struct {
	Reviewers []string `json:"reviewers"`
}

// BranchName returns a fresh branch for a service. The random suffix keeps
// re-proposals from colliding with branches of earlier proposals.
func BranchName(service string) string {
	return fmt.Sprintf("cloudguard/%s-%s", controls.Slug(service), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (c *Client) artifactPath(service string) string {
	dir := c.ControlsDir
	if dir == "" {
		dir = "security-controls"
	}
	return path.Join(dir, controls.Slug(service)+".yaml")
}

// CreateProposal branches from the base branch, commits the rendered
// artifact and opens a pull request.
func (c *Client) CreateProposal(ctx context.Context, cfg BackendConfig, service string, list []controls.SecurityControl) (Proposal, error) {
	if err := cfg.Validate(); err != nil {
		return Proposal{}, backendErr("create proposal", err)
	}
	content, err := controls.RenderYAML(service, list)
	if err != nil {
		return Proposal{}, err
	}

	var base gitRef
	if err := c.call(ctx, cfg.Token, []string{"api", fmt.Sprintf("%s/git/ref/heads/%s", cfg.repoPath(), cfg.base())}, nil, &base); err != nil {
		return Proposal{}, backendErr("resolve base branch", err)
	}
	if base.Object.SHA == "" {
		return Proposal{}, backendErr("resolve base branch", fmt.Errorf("no sha for %s", cfg.base()))
	}

	branch := BranchName(service)
	refReq := createRefRequest{Ref: "refs/heads/" + branch, SHA: base.Object.SHA}
	if err := c.call(ctx, cfg.Token, []string{"api", "-X", "POST", cfg.repoPath() + "/git/refs", "--input", "-"}, refReq, nil); err != nil {
		return Proposal{}, backendErr("create branch", err)
	}

	put := putContentsRequest{
		Message: fmt.Sprintf("Add security controls for %s", service),
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
	}
	if err := c.call(ctx, cfg.Token, []string{"api", "-X", "PUT", cfg.repoPath() + "/contents/" + c.artifactPath(service), "--input", "-"}, put, nil); err != nil {
		return Proposal{}, backendErr("commit artifact", err)
	}

	pullReq := createPullRequest{
		Title: fmt.Sprintf("Security controls: %s", service),
		Head:  branch,
		Base:  cfg.base(),
		Body:  controls.RenderMarkdown(service, list),
	}
	var pull pullResponse
	if err := c.call(ctx, cfg.Token, []string{"api", "-X", "POST", cfg.repoPath() + "/pulls", "--input", "-"}, pullReq, &pull); err != nil {
		return Proposal{}, backendErr("open pull request", err)
	}
	if pull.Number == 0 {
		return Proposal{}, backendErr("open pull request", fmt.Errorf("response carried no pull request number"))
	}

	if len(cfg.Reviewers) > 0 {
		endpoint := fmt.Sprintf("%s/pulls/%d/requested_reviewers", cfg.repoPath(), pull.Number)
		if err := c.call(ctx, cfg.Token, []string{"api", "-X", "POST", endpoint, "--input", "-"}, reviewersRequest{Reviewers: cfg.Reviewers}, nil); err != nil {
			return Proposal{}, backendErr("request reviewers", err)
		}
	}

	return Proposal{
		ID:     strconv.Itoa(pull.Number),
		URL:    pull.HTMLURL,
		Branch: branch,
		Owner:  cfg.Owner,
		Repo:   cfg.Repo,
	}, nil
}

// GetProposalDetails reads the pull request state and gathers reviewer
// feedback posted after since.
func (c *Client) GetProposalDetails(ctx context.Context, cfg BackendConfig, proposalID string, since time.Time) (ProposalDetails, error) {
	if err := cfg.Validate(); err != nil {
		return ProposalDetails{}, backendErr("get proposal", err)
	}
	number, err := strconv.Atoi(strings.TrimSpace(proposalID))
	if err != nil || number <= 0 {
		return ProposalDetails{}, backendErr("get proposal", fmt.Errorf("invalid proposal id %q", proposalID))
	}

	var pull pullResponse
	if err := c.call(ctx, cfg.Token, []string{"api", fmt.Sprintf("%s/pulls/%d", cfg.repoPath(), number)}, nil, &pull); err != nil {
		return ProposalDetails{}, backendErr("get proposal", err)
	}
	details := ProposalDetails{Merged: pull.Merged, State: StateOpen}
	if strings.EqualFold(pull.State, "closed") {
		details.State = StateClosed
	}

	entries, err := c.collectFeedback(ctx, cfg, number)
	if err != nil {
		return ProposalDetails{}, err
	}
	details.Feedback, details.FeedbackThrough = composeFeedback(entries, since)
	return details, nil
}

// UpdateProposal overwrites the artifact on an existing proposal branch.
func (c *Client) UpdateProposal(ctx context.Context, cfg BackendConfig, service string, branch string, list []controls.SecurityControl) error {
	if err := cfg.Validate(); err != nil {
		return backendErr("update proposal", err)
	}
	if strings.TrimSpace(branch) == "" {
		return backendErr("update proposal", fmt.Errorf("branch is required"))
	}
	content, err := controls.RenderYAML(service, list)
	if err != nil {
		return err
	}
	filePath := cfg.repoPath() + "/contents/" + c.artifactPath(service)

	var existing contentsResponse
	if err := c.call(ctx, cfg.Token, []string{"api", filePath + "?ref=" + url.QueryEscape(branch)}, nil, &existing); err != nil {
		return backendErr("read proposal branch", err)
	}
	put := putContentsRequest{
		Message: fmt.Sprintf("Revise security controls for %s from review feedback", service),
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
		SHA:     existing.SHA,
	}
	if err := c.call(ctx, cfg.Token, []string{"api", "-X", "PUT", filePath, "--input", "-"}, put, nil); err != nil {
		return backendErr("update proposal branch", err)
	}
	return nil
}

type feedbackEntry struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

type issueComment struct {
	User      UserRef `json:"user"`
	Body      string  `json:"body"`
	CreatedAt string  `json:"created_at"`
}

type pullReview struct {
	User        UserRef `json:"user"`
	Body        string  `json:"body"`
	State       string  `json:"state"`
	SubmittedAt string  `json:"submitted_at"`
}

type UserRef struct {
	Login string `json:"login"`
}

func (c *Client) collectFeedback(ctx context.Context, cfg BackendConfig, number int) ([]feedbackEntry, error) {
	comments, err := listPages[issueComment](ctx, c.Runner, cfg.Token, fmt.Sprintf("%s/issues/%d/comments?per_page=100", cfg.repoPath(), number))
	if err != nil {
		return nil, backendErr("list comments", err)
	}
	reviews, err := listPages[pullReview](ctx, c.Runner, cfg.Token, fmt.Sprintf("%s/pulls/%d/reviews?per_page=100", cfg.repoPath(), number))
	if err != nil {
		return nil, backendErr("list reviews", err)
	}
	threads, err := c.ReviewThreads(ctx, cfg, number)
	if err != nil {
		return nil, err
	}

	entries := make([]feedbackEntry, 0, len(comments)+len(reviews))
	for _, comment := range comments {
		entries = append(entries, feedbackEntry{Author: comment.User.Login, Body: comment.Body, CreatedAt: parseTime(comment.CreatedAt)})
	}
	for _, review := range reviews {
		entries = append(entries, feedbackEntry{Author: review.User.Login, Body: review.Body, CreatedAt: parseTime(review.SubmittedAt)})
	}
	for _, thread := range threads {
		if thread.IsResolved {
			continue
		}
		for _, comment := range thread.Comments {
			body := comment.Body
			if thread.Path != "" {
				body = fmt.Sprintf("(on %s) %s", thread.Path, comment.Body)
			}
			entries = append(entries, feedbackEntry{Author: comment.Author, Body: body, CreatedAt: parseTime(comment.CreatedAt)})
		}
	}
	return entries, nil
}

// listPages fetches every page of a REST list endpoint. gh --paginate
// prints one JSON array per page, back to back.
func listPages[T any](ctx context.Context, runner Runner, token string, endpoint string) ([]T, error) {
	output, err := runner.Run(ctx, token, []string{"api", "--paginate", endpoint}, nil)
	if err != nil {
		return nil, err
	}
	var all []T
	dec := json.NewDecoder(bytes.NewReader(output))
	for {
		var page []T
		err := dec.Decode(&page)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", endpoint, err)
		}
		all = append(all, page...)
	}
}

func composeFeedback(entries []feedbackEntry, since time.Time) (string, time.Time) {
	kept := make([]feedbackEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Body) == "" {
			continue
		}
		if !since.IsZero() && !entry.CreatedAt.After(since) {
			continue
		}
		kept = append(kept, entry)
	}
	through := since
	for _, entry := range kept {
		if entry.CreatedAt.After(through) {
			through = entry.CreatedAt
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})

	parts := make([]string, 0, len(kept))
	total := 0
	for i := len(kept) - 1; i >= 0; i-- {
		author := kept[i].Author
		if author == "" {
			author = "reviewer"
		}
		part := fmt.Sprintf("%s: %s", author, strings.TrimSpace(kept[i].Body))
		if total > 0 && total+len(part) > MaxFeedbackChars {
			break
		}
		total += len(part)
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\n\n"), through
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// call runs gh, sending payload as JSON on stdin and decoding the output
// into out when both are non-nil.
func (c *Client) call(ctx context.Context, token string, args []string, payload any, out any) error {
	var stdin []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		stdin = data
	}
	output, err := c.Runner.Run(ctx, token, args, stdin)
	if err != nil {
		return err
	}
	if out == nil || len(output) == 0 {
		return nil
	}
	if err := json.Unmarshal(output, out); err != nil {
		return fmt.Errorf("decode gh %s output: %w", args[len(args)-1], err)
	}
	return nil
}
