package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/shared"
)

func TestNewEntry(t *testing.T) {
	at := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	e, err := NewEntry("j-1", "u-1", TypeSavedInsight, " Observation: Office Politics ", "My manager holds authority.", at)
	require.NoError(t, err)
	assert.Equal(t, "Observation: Office Politics", e.Title)
	assert.Equal(t, at, e.CreatedAt)

	_, err = NewEntry("j-2", "u-1", EntryType("diary"), "t", "c", at)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewEntry("j-3", "u-1", TypeSavedInsight, "title", "  ", at)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
