package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brianndofor/cloudguard/internal/controls"
	"github.com/brianndofor/cloudguard/internal/credential"
	"github.com/brianndofor/cloudguard/internal/github"
	"github.com/brianndofor/cloudguard/internal/store"
)

var (
	ErrNoContext     = errors.New("no review context for service")
	ErrNoCredential  = errors.New("no credential available")
	ErrEmptyArtifact = errors.New("artifact has no controls")
	ErrProposalOpen  = errors.New("service already has an open proposal")
)

type ContextStore interface {
	Save(rc store.ReviewContext) error
	Get(serviceName string) (store.ReviewContext, bool, error)
	UpdateStatus(serviceName string, status store.Status, list []controls.SecurityControl) error
}

type Backend interface {
	CreateProposal(ctx context.Context, cfg github.BackendConfig, service string, list []controls.SecurityControl) (github.Proposal, error)
	GetProposalDetails(ctx context.Context, cfg github.BackendConfig, proposalID string, since time.Time) (github.ProposalDetails, error)
	UpdateProposal(ctx context.Context, cfg github.BackendConfig, service string, branch string, list []controls.SecurityControl) error
}

type Generator interface {
	RegenerateWithFeedback(ctx context.Context, service string, current []controls.SecurityControl, feedback string) ([]controls.SecurityControl, error)
}

// Engine moves review contexts through NONE, OPEN, MERGED and CLOSED. It
// holds no lock; callers that may sync one service twice at once use Flight.
type Engine struct {
	Store       ContextStore
	Backend     Backend
	Generator   Generator
	Credentials credential.Cache
	Logger      *slog.Logger
	Now         func() time.Time
}

// Result describes what a sync did.
type Result struct {
	Action   Action
	Context  store.ReviewContext
	Feedback string
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (e *Engine) remember(token string) {
	if e.Credentials == nil {
		return
	}
	e.Credentials.Set(credential.Credential{Token: token})
}

// Push opens a new proposal for list. A service whose proposal is still
// open is rejected with ErrProposalOpen; sync it or use Replace. Nothing is
// written when the backend call fails.
func (e *Engine) Push(ctx context.Context, service string, list []controls.SecurityControl, cfg github.BackendConfig) (store.ReviewContext, error) {
	return e.push(ctx, service, list, cfg, false)
}

// Replace opens a new proposal even when one is open for service. The old
// proposal is left as it is on the backend and is no longer tracked.
func (e *Engine) Replace(ctx context.Context, service string, list []controls.SecurityControl, cfg github.BackendConfig) (store.ReviewContext, error) {
	return e.push(ctx, service, list, cfg, true)
}

func (e *Engine) push(ctx context.Context, service string, list []controls.SecurityControl, cfg github.BackendConfig, replace bool) (store.ReviewContext, error) {
	if strings.TrimSpace(service) == "" {
		return store.ReviewContext{}, fmt.Errorf("push: service name is required")
	}
	if len(list) == 0 {
		return store.ReviewContext{}, fmt.Errorf("push %s: %w", service, ErrEmptyArtifact)
	}
	existing, ok, err := e.Store.Get(service)
	if err != nil {
		return store.ReviewContext{}, fmt.Errorf("push %s: load context: %w", service, err)
	}
	if ok && existing.Status == store.StatusOpen && !replace {
		return store.ReviewContext{}, fmt.Errorf("push %s: %w (%s)", service, ErrProposalOpen, existing.ProposalURL)
	}
	proposal, err := e.Backend.CreateProposal(ctx, cfg, service, list)
	if err != nil {
		return store.ReviewContext{}, err
	}
	rc := store.ReviewContext{
		ServiceName: strings.TrimSpace(service),
		BaseBranch:  cfg.BranchBase,
		Reviewers:   cfg.Reviewers,
		Status:      store.StatusOpen,
		LastUpdated: e.now(),
		Controls:    controls.Clone(list),
	}
	applyProposal(&rc, proposal)
	if err := e.Store.Save(rc); err != nil {
		return store.ReviewContext{}, fmt.Errorf("push %s: save context: %w", service, err)
	}
	e.remember(cfg.Token)
	e.logger().Info("proposal opened", "service", rc.ServiceName, "action", "push", "proposal", rc.ProposalURL, "replaced", ok && existing.Status == store.StatusOpen)
	return rc, nil
}

// Sync reconciles the stored context with one snapshot of the live
// proposal. An empty cred falls back to the credential cache.
func (e *Engine) Sync(ctx context.Context, service string, cred credential.Credential) (Result, error) {
	if cred.Empty() && e.Credentials != nil {
		if cached, ok := e.Credentials.Get(); ok {
			cred = cached
		}
	}
	if cred.Empty() {
		return Result{}, fmt.Errorf("sync %s: %w", service, ErrNoCredential)
	}
	rc, ok, err := e.Store.Get(service)
	if err != nil {
		return Result{}, fmt.Errorf("sync %s: load context: %w", service, err)
	}
	if !ok {
		return Result{}, fmt.Errorf("sync %s: %w", service, ErrNoContext)
	}

	cfg := backendConfig(rc, cred)
	details, err := e.Backend.GetProposalDetails(ctx, cfg, rc.ProposalID, rc.FeedbackCursor)
	if err != nil {
		return Result{}, fmt.Errorf("sync %s: fetch proposal: %w", rc.ServiceName, err)
	}

	action := Decide(details)
	log := e.logger().With("service", rc.ServiceName, "action", action.String(), "proposal", rc.ProposalID)
	log.Debug("sync decision", "state", details.State, "merged", details.Merged, "feedback_chars", len(details.Feedback))

	result := Result{Action: action, Context: rc, Feedback: details.Feedback}
	switch action {
	case ActionMerged:
		if err := e.Store.UpdateStatus(rc.ServiceName, store.StatusMerged, nil); err != nil {
			return Result{}, fmt.Errorf("sync %s: record merge: %w", rc.ServiceName, err)
		}
		rc.Status = store.StatusMerged
		if updated, ok, err := e.Store.Get(rc.ServiceName); err == nil && ok {
			rc = updated
		}
	case ActionRegenerateUpdate, ActionRegeneratePropose:
		regenerated, err := e.Generator.RegenerateWithFeedback(ctx, rc.ServiceName, rc.Controls, details.Feedback)
		if err != nil {
			return Result{}, fmt.Errorf("sync %s: regenerate: %w", rc.ServiceName, err)
		}
		if action == ActionRegenerateUpdate {
			rc, err = e.updateInPlace(ctx, cfg, rc, regenerated, details.FeedbackThrough)
		} else {
			rc, err = e.repropose(ctx, cfg, rc, regenerated)
		}
		if err != nil {
			return Result{}, err
		}
	case ActionRepropose:
		rc, err = e.repropose(ctx, cfg, rc, rc.Controls)
		if err != nil {
			return Result{}, err
		}
	case ActionNone:
	}

	e.remember(cred.Token)
	result.Context = rc
	log.Info("sync complete", "result", action.Describe())
	return result, nil
}

// updateInPlace moves the feedback cursor only up to the snapshot the
// regeneration saw, so comments posted meanwhile are picked up next time.
func (e *Engine) updateInPlace(ctx context.Context, cfg github.BackendConfig, rc store.ReviewContext, list []controls.SecurityControl, through time.Time) (store.ReviewContext, error) {
	if err := e.Backend.UpdateProposal(ctx, cfg, rc.ServiceName, rc.BranchName, list); err != nil {
		return store.ReviewContext{}, fmt.Errorf("sync %s: update proposal: %w", rc.ServiceName, err)
	}
	rc.Status = store.StatusOpen
	rc.Controls = controls.Clone(list)
	rc.LastUpdated = e.now()
	if through.After(rc.FeedbackCursor) {
		rc.FeedbackCursor = through
	}
	if err := e.Store.Save(rc); err != nil {
		return store.ReviewContext{}, fmt.Errorf("sync %s: save context: %w", rc.ServiceName, err)
	}
	return rc, nil
}

func (e *Engine) repropose(ctx context.Context, cfg github.BackendConfig, rc store.ReviewContext, list []controls.SecurityControl) (store.ReviewContext, error) {
	proposal, err := e.Backend.CreateProposal(ctx, cfg, rc.ServiceName, list)
	if err != nil {
		return store.ReviewContext{}, fmt.Errorf("sync %s: create proposal: %w", rc.ServiceName, err)
	}
	applyProposal(&rc, proposal)
	rc.Status = store.StatusOpen
	rc.Controls = controls.Clone(list)
	rc.LastUpdated = e.now()
	rc.FeedbackCursor = time.Time{}
	if err := e.Store.Save(rc); err != nil {
		return store.ReviewContext{}, fmt.Errorf("sync %s: save context: %w", rc.ServiceName, err)
	}
	return rc, nil
}

func applyProposal(rc *store.ReviewContext, p github.Proposal) {
	rc.ProposalID = p.ID
	rc.ProposalURL = p.URL
	rc.BranchName = p.Branch
	rc.RepoOwner = p.Owner
	rc.RepoName = p.Repo
}

func backendConfig(rc store.ReviewContext, cred credential.Credential) github.BackendConfig {
	return github.BackendConfig{
		Owner:      rc.RepoOwner,
		Repo:       rc.RepoName,
		Token:      cred.Token,
		BranchBase: rc.BaseBranch,
		Reviewers:  rc.Reviewers,
	}
}
