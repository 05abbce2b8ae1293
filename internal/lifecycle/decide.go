package lifecycle

import (
	"strings"

	"github.com/brianndofor/cloudguard/internal/github"
)

// Action is the single step a sync takes after reading the proposal once.
type Action string

const (
	ActionNone              Action = "none"
	ActionMerged            Action = "merged"
	ActionRegenerateUpdate  Action = "regenerate_update"
	ActionRegeneratePropose Action = "regenerate_propose"
	ActionRepropose         Action = "repropose"
)

// Decide maps a proposal snapshot to exactly one action. Merged wins over
// everything, feedback wins over a bare close.
func Decide(details github.ProposalDetails) Action {
	if details.Merged {
		return ActionMerged
	}
	hasFeedback := strings.TrimSpace(details.Feedback) != ""
	closed := details.State == github.StateClosed
	switch {
	case hasFeedback && closed:
		return ActionRegeneratePropose
	case hasFeedback:
		return ActionRegenerateUpdate
	case closed:
		return ActionRepropose
	default:
		return ActionNone
	}
}

func (a Action) String() string {
	return string(a)
}

// Describe is the one line shown to the user after a sync.
func (a Action) Describe() string {
	switch a {
	case ActionMerged:
		return "proposal merged"
	case ActionRegenerateUpdate:
		return "feedback applied to the open proposal"
	case ActionRegeneratePropose:
		return "feedback applied in a new proposal"
	case ActionRepropose:
		return "closed proposal re-opened as a new proposal"
	default:
		return "no changes"
	}
}
