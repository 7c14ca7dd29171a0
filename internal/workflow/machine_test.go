package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fso-systems/travelreq/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"draft submit", models.StatusDraft, models.StatusSubmitted, true},
		{"draft edit", models.StatusDraft, models.StatusDraft, true},
		{"draft cancel", models.StatusDraft, models.StatusCanceled, true},
		{"draft cannot skip to approved", models.StatusDraft, models.StatusApproved, false},
		{"submitted to in-progress", models.StatusSubmitted, models.StatusInProgress, true},
		{"submitted to approved", models.StatusSubmitted, models.StatusApproved, true},
		{"submitted back to draft", models.StatusSubmitted, models.StatusDraft, false},
		{"revision-requested resubmit", models.StatusRevisionRequested, models.StatusSubmitted, true},
		{"revision-requested edit", models.StatusRevisionRequested, models.StatusRevisionRequested, true},
		{"approved cancel", models.StatusApproved, models.StatusCanceled, true},
		{"approved cannot reopen", models.StatusApproved, models.StatusSubmitted, false},
		{"canceled is terminal", models.StatusCanceled, models.StatusSubmitted, false},
		{"denied is terminal", models.StatusDenied, models.StatusSubmitted, false},
		{"unknown status", "bogus", models.StatusSubmitted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusCanceled))
	assert.True(t, IsTerminal(models.StatusDenied))
	assert.False(t, IsTerminal(models.StatusApproved))
	assert.False(t, IsTerminal(models.StatusDraft))
	assert.False(t, IsTerminal("bogus"))
}

func TestInitialAllowed(t *testing.T) {
	assert.True(t, InitialAllowed(models.StatusDraft))
	assert.True(t, InitialAllowed(models.StatusSubmitted))
	assert.False(t, InitialAllowed(models.StatusApproved))
	assert.False(t, InitialAllowed(models.StatusInProgress))
}

func TestPermittedNextIsACopy(t *testing.T) {
	next := PermittedNext(models.StatusDraft)
	next[0] = "mutated"
	assert.True(t, CanTransition(models.StatusDraft, models.StatusDraft))
}
