package fixengine

import (
	"fmt"
	"time"
)

// Weekday mirrors time.Weekday; Schedule uses it directly so callers never
// need to import "time" just to configure a weekly window.
type Weekday = time.Weekday

// Schedule answers "is this session currently in session" (spec §4.7): a
// session outside its schedule window must not be allowed to logon, and a
// schedule transition to out-of-session while active triggers a graceful
// Logout (driven by the caller polling IsSessionTime on a timer).
type Schedule struct {
	nonStop bool

	startTime time.Time // only the time-of-day component is meaningful
	endTime   time.Time

	// weekly is true when StartDay/EndDay are both set; otherwise the
	// window resets daily.
	weekly   bool
	startDay time.Weekday
	endDay   time.Weekday

	loc *time.Location
}

// NewNonStopSchedule builds a schedule that is always in session.
func NewNonStopSchedule() *Schedule { return &Schedule{nonStop: true} }

// NewDailySchedule builds a schedule that is in session between startTime and
// endTime (time-of-day, in loc) every day. If startTime > endTime, the
// window wraps past midnight (spec §4.7).
func NewDailySchedule(startTime, endTime time.Time, loc *time.Location) *Schedule {
	return &Schedule{startTime: startTime, endTime: endTime, loc: loc}
}

// NewWeeklySchedule builds a schedule whose window runs from startDay at
// startTime through endDay at endTime, wrapping forward across the week
// boundary if necessary (spec §4.7).
func NewWeeklySchedule(startDay time.Weekday, startTime time.Time, endDay time.Weekday, endTime time.Time, loc *time.Location) *Schedule {
	return &Schedule{
		weekly: true, startDay: startDay, startTime: startTime,
		endDay: endDay, endTime: endTime, loc: loc,
	}
}

// IsSessionTime reports whether now falls within the schedule's window.
func (s *Schedule) IsSessionTime(now time.Time) bool {
	if s.nonStop {
		return true
	}
	loc := s.loc
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	if !s.weekly {
		todayStart := atTimeOfDay(local, s.startTime)
		todayEnd := atTimeOfDay(local, s.endTime)
		if !s.startTime.After(s.endTime) {
			return !local.Before(todayStart) && !local.After(todayEnd)
		}
		// Wraps past midnight: in session if we're after today's start or
		// before today's end (i.e. still within yesterday's window).
		return !local.Before(todayStart) || !local.After(todayEnd)
	}

	weekStart := mostRecentWeekday(local, s.startDay)
	weekStart = atTimeOfDay(weekStart, s.startTime)
	if weekStart.After(local) {
		weekStart = weekStart.AddDate(0, 0, -7)
	}
	// The window closes at the first endDay/endTime after it opened.
	weekEnd := nextWeekday(weekStart, s.endDay)
	weekEnd = atTimeOfDay(weekEnd, s.endTime)
	if weekEnd.Before(weekStart) {
		weekEnd = weekEnd.AddDate(0, 0, 7)
	}
	return !local.Before(weekStart) && !local.After(weekEnd)
}

func atTimeOfDay(day, t time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}

func mostRecentWeekday(from time.Time, target time.Weekday) time.Time {
	d := from
	for d.Weekday() != target {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	d := from
	for d.Weekday() != target {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// String describes the schedule for diagnostics.
func (s *Schedule) String() string {
	if s.nonStop {
		return "non-stop"
	}
	if s.weekly {
		return fmt.Sprintf("%s %s - %s %s (%s)", s.startDay, s.startTime.Format("15:04:05"), s.endDay, s.endTime.Format("15:04:05"), s.loc)
	}
	return fmt.Sprintf("%s - %s daily (%s)", s.startTime.Format("15:04:05"), s.endTime.Format("15:04:05"), s.loc)
}
