// Package workflow guards approval-status transitions between successive
// revisions of one logical request.
package workflow

import (
	"errors"

	"github.com/fso-systems/travelreq/internal/models"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the statuses reachable from each status. A same-status
// edit is always a permitted revision.
var transitions = map[string][]string{
	models.StatusDraft: {
		models.StatusDraft,
		models.StatusSubmitted,
		models.StatusCanceled,
	},
	models.StatusSubmitted: {
		models.StatusSubmitted,
		models.StatusInProgress,
		models.StatusApproved,
		models.StatusDenied,
		models.StatusCanceled,
		models.StatusRevisionRequested,
	},
	models.StatusInProgress: {
		models.StatusInProgress,
		models.StatusApproved,
		models.StatusDenied,
		models.StatusCanceled,
		models.StatusRevisionRequested,
	},
	models.StatusRevisionRequested: {
		models.StatusRevisionRequested,
		models.StatusSubmitted,
		models.StatusCanceled,
	},
	models.StatusApproved: {
		models.StatusApproved,
		models.StatusCanceled,
	},
	// canceled and denied are terminal
}

// CanTransition reports whether a revision may move a request from one
// approval status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func IsTerminal(s string) bool {
	return len(transitions[s]) == 0 && models.ValidApprovalStatus(s)
}

// PermittedNext returns the statuses reachable from s.
func PermittedNext(s string) []string {
	return append([]string(nil), transitions[s]...)
}

// InitialAllowed reports whether a brand-new logical request may start in s.
func InitialAllowed(s string) bool {
	return s == models.StatusDraft || s == models.StatusSubmitted
}
