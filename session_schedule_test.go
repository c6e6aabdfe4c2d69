package fixengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonStopScheduleAlwaysInSession(t *testing.T) {
	s := NewNonStopSchedule()
	assert.True(t, s.IsSessionTime(time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestDailyScheduleWithinWindow(t *testing.T) {
	start := time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, 17, 0, 0, 0, time.UTC)
	s := NewDailySchedule(start, end, time.UTC)

	assert.True(t, s.IsSessionTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsSessionTime(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)))
}

func TestDailyScheduleWrapsPastMidnight(t *testing.T) {
	start := time.Date(0, 1, 1, 22, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, 6, 0, 0, 0, time.UTC)
	s := NewDailySchedule(start, end, time.UTC)

	assert.True(t, s.IsSessionTime(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsSessionTime(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsSessionTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestWeeklyScheduleWrapsAcrossWeekBoundary(t *testing.T) {
	start := time.Date(0, 1, 1, 22, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, 22, 0, 0, 0, time.UTC)
	s := NewWeeklySchedule(time.Sunday, start, time.Friday, end, time.UTC)

	// Wednesday is well inside a Sunday..Friday window.
	assert.True(t, s.IsSessionTime(time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)))
	// Saturday is outside.
	assert.False(t, s.IsSessionTime(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)))
}
