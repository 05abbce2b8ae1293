package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
)

const (
	sourceAuto    = "auto"
	sourceDraft   = "draft"
	sourceContext = "context"
)

// loadArtifact returns the controls for service from the stored context,
// the draft, or both in that order for sourceAuto.
func loadArtifact(app *App, service string, source string) ([]controls.SecurityControl, error) {
	switch source {
	case "", sourceAuto, sourceContext:
		rc, ok, err := app.Store.Get(service)
		if err != nil {
			return nil, err
		}
		if ok && len(rc.Controls) > 0 {
			return rc.Controls, nil
		}
		if source == sourceContext {
			return nil, fmt.Errorf("no review context for %s: run push first", service)
		}
		return loadDraft(app, service)
	case sourceDraft:
		return loadDraft(app, service)
	default:
		return nil, fmt.Errorf("unknown source %q (want auto, draft or context)", source)
	}
}

func loadDraft(app *App, service string) ([]controls.SecurityControl, error) {
	draft, err := app.Store.GetDraft(service)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no controls for %s: run generate first", service)
		}
		return nil, err
	}
	return draft.Controls, nil
}

// readArtifactFile accepts either a bare JSON array of controls or an
// object with a "controls" field, as printed by generate --format json.
func readArtifactFile(path string) ([]controls.SecurityControl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var list []controls.SecurityControl
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		err = json.Unmarshal(data, &list)
	} else {
		var doc struct {
			Controls []controls.SecurityControl `json:"controls"`
		}
		err = json.Unmarshal(data, &doc)
		list = doc.Controls
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if err := controls.Validate(list); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	}
	return list, nil
}

func serviceArg(args []string) (string, error) {
	service := strings.TrimSpace(strings.Join(args, " "))
	if service == "" {
		return "", fmt.Errorf("service name is required")
	}
	return service, nil
}
