package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/controls"
)

type Kind string

const (
	KindPolicyRejected Kind = "policy_rejected"
	KindGeneration     Kind = "generation"
)

var (
	ErrPolicyRejected = errors.New("policy rejected")
	ErrGeneration     = errors.New("generation error")
)

// Error is returned by every generator operation. A policy rejection keeps
// the backend's reason verbatim so it can be shown to the user as is.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindPolicyRejected {
		return fmt.Sprintf("policy rejected: %s", e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("generation error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("generation error: %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrPolicyRejected:
		return e.Kind == KindPolicyRejected
	case ErrGeneration:
		return e.Kind == KindGeneration
	}
	return false
}

func generationErr(op string, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Kind: KindGeneration, Op: op, Err: err}
}

// Rejection is the backend refusing the input as out of scope.
type Rejection struct {
	Reason string
}

// Outcome is a decoded controls response: exactly one of Rejected or
// Controls is set.
type Outcome struct {
	Rejected *Rejection
	Controls []controls.SecurityControl
}

// Result turns the outcome into the artifact or the matching error.
func (o Outcome) Result(op string) ([]controls.SecurityControl, error) {
	if o.Rejected != nil {
		return nil, &Error{Kind: KindPolicyRejected, Op: op, Reason: o.Rejected.Reason}
	}
	return o.Controls, nil
}

type controlsResponse struct {
	ServiceName string                     `json:"serviceName"`
	Controls    []controls.SecurityControl `json:"controls"`
	Error       string                     `json:"error"`
}

type infrastructureResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func stripCodeFence(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
