package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brianndofor/cloudguard/internal/controls"
)

// Draft is the last generated artifact for a service that has not been
// proposed yet. Drafts never stand in for a review context.
type Draft struct {
	ServiceName string
	CreatedAt   time.Time
	Controls    []controls.SecurityControl
}

func (s *Store) SaveDraft(serviceName string, list []controls.SecurityControl) error {
	if NormalizeServiceName(serviceName) == "" {
		return fmt.Errorf("service name is required")
	}
	if len(list) == 0 {
		return fmt.Errorf("draft has no controls")
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO drafts (service_key, service_name, created_at, payload_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_key) DO UPDATE SET
			service_name = excluded.service_name,
			created_at = excluded.created_at,
			payload_json = excluded.payload_json
	`, NormalizeServiceName(serviceName), serviceName, s.now().UTC().Format(time.RFC3339), string(payload))
	if err != nil {
		return unavailable("save draft", err)
	}
	return nil
}

// GetDraft returns sql.ErrNoRows when nothing was generated for the service.
func (s *Store) GetDraft(serviceName string) (Draft, error) {
	row := s.db.QueryRow(`
		SELECT service_name, created_at, payload_json
		FROM drafts
		WHERE service_key = ?
	`, NormalizeServiceName(serviceName))
	var d Draft
	var createdAt, payload string
	if err := row.Scan(&d.ServiceName, &createdAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, sql.ErrNoRows
		}
		return Draft{}, unavailable("read draft", err)
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		d.CreatedAt = parsed
	}
	if err := json.Unmarshal([]byte(payload), &d.Controls); err != nil {
		return Draft{}, unavailable("decode draft", err)
	}
	return d, nil
}

func (s *Store) DeleteDraft(serviceName string) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE service_key = ?`, NormalizeServiceName(serviceName))
	if err != nil {
		return unavailable("delete draft", err)
	}
	return nil
}
