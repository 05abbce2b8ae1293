package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/brianndofor/cloudguard/internal/controls"
)

// ContextNamespace names the single record that holds every review context.
const ContextNamespace = "cloudguard_context_v1"

type Status string

const (
	StatusNone   Status = "NONE"
	StatusOpen   Status = "OPEN"
	StatusMerged Status = "MERGED"
	StatusClosed Status = "CLOSED"
)

// ReviewContext links a service to its current proposal and the artifact
// last sent to, or confirmed from, the review backend. FeedbackCursor is the
// backend timestamp of the newest feedback already applied to Controls; zero
// means none has been applied to the current proposal.
type ReviewContext struct {
	ServiceName    string                     `json:"serviceName"`
	ProposalID     string                     `json:"proposalId"`
	ProposalURL    string                     `json:"proposalUrl"`
	BranchName     string                     `json:"branchName"`
	BaseBranch     string                     `json:"baseBranch,omitempty"`
	RepoOwner      string                     `json:"repoOwner"`
	RepoName       string                     `json:"repoName"`
	Reviewers      []string                   `json:"reviewers,omitempty"`
	Status         Status                     `json:"status"`
	LastUpdated    time.Time                  `json:"lastUpdated"`
	FeedbackCursor time.Time                  `json:"feedbackCursor"`
	Controls       []controls.SecurityControl `json:"controls"`
}

func NormalizeServiceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Save upserts by normalized service name; the last write wins.
func (s *Store) Save(rc ReviewContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateContexts(func(all map[string]ReviewContext) bool {
		all[NormalizeServiceName(rc.ServiceName)] = rc
		return true
	})
}

func (s *Store) Get(serviceName string) (ReviewContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadContexts(s.db)
	if err != nil {
		return ReviewContext{}, false, err
	}
	rc, ok := all[NormalizeServiceName(serviceName)]
	return rc, ok, nil
}

// UpdateStatus stamps status and lastUpdated, replacing the controls when a
// non-nil list is given. It does nothing when no context exists.
func (s *Store) UpdateStatus(serviceName string, status Status, list []controls.SecurityControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeServiceName(serviceName)
	return s.mutateContexts(func(all map[string]ReviewContext) bool {
		rc, ok := all[key]
		if !ok {
			return false
		}
		rc.Status = status
		rc.LastUpdated = s.now().UTC()
		if list != nil {
			rc.Controls = list
		}
		all[key] = rc
		return true
	})
}

// List returns every stored context ordered by normalized name.
func (s *Store) List() ([]ReviewContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadContexts(s.db)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]ReviewContext, 0, len(keys))
	for _, key := range keys {
		out = append(out, all[key])
	}
	return out, nil
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) loadContexts(q queryer) (map[string]ReviewContext, error) {
	var payload string
	err := q.QueryRow(`SELECT payload_json FROM namespaces WHERE name = ?`, ContextNamespace).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]ReviewContext{}, nil
	}
	if err != nil {
		return nil, unavailable("read contexts", err)
	}
	all := map[string]ReviewContext{}
	if err := json.Unmarshal([]byte(payload), &all); err != nil {
		return nil, unavailable("decode contexts", err)
	}
	return all, nil
}

// mutateContexts reads the whole record, applies fn and writes the whole
// record back in one transaction. fn returning false skips the write.
func (s *Store) mutateContexts(fn func(all map[string]ReviewContext) bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	all, err := s.loadContexts(tx)
	if err != nil {
		return err
	}
	if !fn(all) {
		return nil
	}
	payload, err := json.Marshal(all)
	if err != nil {
		return unavailable("encode contexts", err)
	}
	_, err = tx.Exec(`
		INSERT INTO namespaces (name, payload_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`, ContextNamespace, string(payload), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return unavailable("write contexts", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit contexts", err)
	}
	return nil
}
