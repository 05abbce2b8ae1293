package cli

import (
	"errors"
	"strings"

	"github.com/brianndofor/cloudguard/internal/generator"
	"github.com/brianndofor/cloudguard/internal/github"
	"github.com/brianndofor/cloudguard/internal/store"
)

// ErrorMessage is what the user sees for a failed command. Policy
// rejections show the generator's reason and nothing else.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var genErr *generator.Error
	if errors.As(err, &genErr) && genErr.Kind == generator.KindPolicyRejected {
		return "policy rejected: " + genErr.Reason
	}
	label := ""
	var backendErr *github.BackendError
	switch {
	case errors.As(err, &genErr):
		label = "generation error"
	case errors.As(err, &backendErr):
		label = "backend error"
	case errors.Is(err, store.ErrStorageUnavailable):
		label = "storage unavailable"
	}
	msg := err.Error()
	if label == "" || strings.HasPrefix(msg, label) {
		return msg
	}
	return label + ": " + msg
}
