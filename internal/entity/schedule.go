package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleFrequency is the recurrence cadence of a schedule.
type ScheduleFrequency string

const (
	FrequencyHourly  ScheduleFrequency = "hourly"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// ExecutionStatus is the outcome of a single schedule execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// Schedule is the recurring-trigger configuration for a project. There is at
// most one schedule per project. NextRun is non-nil exactly when the schedule
// is enabled.
type Schedule struct {
	ID                  string            `json:"id"`
	ProjectID           string            `json:"project_id"`
	UserID              string            `json:"user_id"`
	Enabled             bool              `json:"enabled"`
	Frequency           ScheduleFrequency `json:"frequency"`
	Time                string            `json:"time,omitempty"`          // HH:MM, daily and up
	DayOfWeek           *int              `json:"day_of_week,omitempty"`   // 0=Monday..6=Sunday, weekly only
	DayOfMonth          *int              `json:"day_of_month,omitempty"`  // 1..28, monthly only
	Timezone            string            `json:"timezone"`
	MaxRetries          int               `json:"max_retries"`
	NotifyOnFailure     bool              `json:"notify_on_failure"`
	NextRun             *time.Time        `json:"next_run,omitempty"`
	LastRun             *time.Time        `json:"last_run,omitempty"`
	LastStatus          ExecutionStatus   `json:"last_status,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ScheduleExecution is an append-only audit record of one schedule firing.
type ScheduleExecution struct {
	ID           string          `json:"id"`
	ScheduleID   string          `json:"schedule_id"`
	JobID        string          `json:"job_id,omitempty"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ResultsCount int             `json:"results_count"`
	Error        string          `json:"error,omitempty"`
	RetryCount   int             `json:"retry_count"`
}

// NextRunAfter computes the next run instant strictly after now, applying the
// schedule's frequency rules in its configured timezone. The result is in UTC.
func (s *Schedule) NextRunAfter(now time.Time) (time.Time, error) {
	loc, err := s.location()
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	hour, minute := 9, 0 // default slot when no time is configured
	if s.Time != "" {
		hour, minute, err = ParseHHMM(s.Time)
		if err != nil {
			return time.Time{}, err
		}
	}

	var next time.Time
	switch s.Frequency {
	case FrequencyHourly:
		next = time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)

	case FrequencyDaily:
		next = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !next.After(local) {
			next = next.AddDate(0, 0, 1)
		}

	case FrequencyWeekly:
		target := 0
		if s.DayOfWeek != nil {
			target = *s.DayOfWeek
		}
		daysAhead := target - mondayIndexed(local.Weekday())
		if daysAhead < 0 || (daysAhead == 0 && local.Hour()*60+local.Minute() >= hour*60+minute) {
			daysAhead += 7
		}
		next = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc).AddDate(0, 0, daysAhead)

	case FrequencyMonthly:
		day := 1
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		next = time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, loc)
		if !next.After(local) {
			// dayOfMonth is capped at 28, so advancing the month never overflows.
			next = time.Date(local.Year(), local.Month()+1, day, hour, minute, 0, 0, loc)
		}

	default:
		next = local.AddDate(0, 0, 1)
	}

	return next.UTC(), nil
}

// FastRetryDelay is how soon a failed execution is retried, replacing the
// normal cadence until the schedule either succeeds or hits MaxRetries.
const FastRetryDelay = 5 * time.Minute

// ApplyExecution reconciles the schedule's state after an execution reaches
// the given status at time now. A completed execution resets the failure
// counter and restores the normal cadence; a failed one schedules a fast
// retry or, at MaxRetries, disables the schedule. Skipped executions leave
// the schedule due so the condition stays visible until an operator acts.
func (s *Schedule) ApplyExecution(status ExecutionStatus, now time.Time) error {
	s.LastStatus = status

	switch status {
	case ExecutionRunning:
		t := now.UTC()
		s.LastRun = &t
		return s.advance(now)

	case ExecutionCompleted:
		s.ConsecutiveFailures = 0
		return s.advance(now)

	case ExecutionFailed:
		s.ConsecutiveFailures++
		if s.MaxRetries > 0 && s.ConsecutiveFailures >= s.MaxRetries {
			s.Enabled = false
			s.NextRun = nil
			return nil
		}
		if s.Enabled {
			retry := now.UTC().Add(FastRetryDelay)
			s.NextRun = &retry
		}
	}
	return nil
}

func (s *Schedule) advance(now time.Time) error {
	if !s.Enabled {
		s.NextRun = nil
		return nil
	}
	next, err := s.NextRunAfter(now)
	if err != nil {
		return err
	}
	s.NextRun = &next
	return nil
}

func (s *Schedule) location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// mondayIndexed converts Go's Sunday=0 weekday to the Monday=0 indexing that
// Schedule.DayOfWeek uses.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseHHMM parses a wall-clock time in HH:MM format.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
