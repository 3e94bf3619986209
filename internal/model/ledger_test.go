package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApprovalNotes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
	}{
		{
			name:     "empty string yields empty history",
			raw:      "",
			expected: 0,
		},
		{
			name:     "malformed json yields empty history",
			raw:      "{not json",
			expected: 0,
		},
		{
			name:     "wrong shape yields empty history",
			raw:      `{"user_id":"x"}`,
			expected: 0,
		},
		{
			name:     "single entry",
			raw:      `[{"user_id":"u1","username":"carol","action":"approved","timestamp":"2026-01-05T10:00:00Z"}]`,
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := ParseApprovalNotes(tt.raw)
			require.NotNil(t, notes)
			assert.Len(t, notes, tt.expected)
		})
	}
}

func TestAppendApprovalNote(t *testing.T) {
	first := ApprovalNote{
		UserID:    "u1",
		Username:  "carol",
		Action:    ApprovalActionApproved,
		Timestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Comments:  "looks fine",
	}
	second := ApprovalNote{
		UserID:    "u2",
		Username:  "dave",
		Action:    ApprovalActionRejected,
		Timestamp: time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC),
		Reason:    "wrong vendor",
	}

	raw := AppendApprovalNote("", first)
	raw = AppendApprovalNote(raw, second)

	notes := ParseApprovalNotes(raw)
	require.Len(t, notes, 2)

	assert.Equal(t, "carol", notes[0].Username)
	assert.Equal(t, ApprovalActionApproved, notes[0].Action)
	assert.Equal(t, "looks fine", notes[0].Comments)
	assert.Empty(t, notes[0].Reason)

	assert.Equal(t, "dave", notes[1].Username)
	assert.Equal(t, ApprovalActionRejected, notes[1].Action)
	assert.Equal(t, "wrong vendor", notes[1].Reason)
	assert.True(t, notes[0].Timestamp.Before(notes[1].Timestamp))
}

func TestAppendApprovalNotePreservesExisting(t *testing.T) {
	raw := `[{"user_id":"u1","username":"carol","action":"approved","timestamp":"2026-01-05T10:00:00Z","comments":"ok"}]`

	updated := AppendApprovalNote(raw, ApprovalNote{
		UserID:    "u2",
		Username:  "dave",
		Action:    ApprovalActionApproved,
		Timestamp: time.Now().UTC(),
	})

	notes := ParseApprovalNotes(updated)
	require.Len(t, notes, 2)
	assert.Equal(t, "carol", notes[0].Username)
	assert.Equal(t, "ok", notes[0].Comments)
}

func TestApprovalHistory(t *testing.T) {
	r := &Requisition{ApprovalNotes: `[{"user_id":"u1","username":"carol","action":"approved","timestamp":"2026-01-05T10:00:00Z"}]`}
	history := r.ApprovalHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "carol", history[0].Username)

	empty := &Requisition{}
	assert.Empty(t, empty.ApprovalHistory())
}
