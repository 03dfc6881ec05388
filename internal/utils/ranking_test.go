package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePopularity(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, CalculatePopularity(now, now, PopularitySignals{}))

	busy := CalculatePopularity(now, now, PopularitySignals{Members: 3, Comments: 10})
	quiet := CalculatePopularity(now, now, PopularitySignals{Members: 1})
	assert.Greater(t, busy, quiet)

	old := CalculatePopularity(now.Add(-30*24*time.Hour), now, PopularitySignals{Members: 3, Comments: 10})
	assert.Greater(t, busy, old)

	future := CalculatePopularity(now.Add(time.Hour), now, PopularitySignals{Members: 1})
	assert.Equal(t, quiet, future)
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
}
