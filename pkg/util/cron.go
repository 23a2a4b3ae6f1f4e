package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Five fields only: minute, hour, day of month, month, day of week.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a parsed cron expression pinned to a location.
type Schedule struct {
	expr string
	loc  *time.Location
	next cron.Schedule
}

// ParseSchedule parses expr. A nil loc means UTC.
func ParseSchedule(expr string, loc *time.Location) (*Schedule, error) {
	next, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Schedule{expr: expr, loc: loc, next: next}, nil
}

// Next is the first run strictly after t, in the schedule's location.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.next.Next(t.In(s.loc))
}

func (s *Schedule) String() string {
	return s.expr
}
