// Package schedule computes the class-meeting calendar of a cohort.
package schedule

import (
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// maxSessionsPerWeek models the fixed 3-classes-per-week cadence. Which
// weekdays are picked depends purely on encounter order within the week,
// not on a fixed day-of-week set.
const maxSessionsPerWeek = 3

var ErrInvalidRange = errors.New("start date is after end date")

// Session is one class meeting with its sequential number.
type Session struct {
	Number int       `json:"number"`
	Date   time.Time `json:"date"`
}

// Generate walks each calendar day from start to end inclusive and returns
// the ordered class sessions: Sundays are always excluded, and only the
// first 3 non-Sunday days of each Monday-anchored week qualify. A range
// spanning zero qualifying days yields an empty sequence, not an error.
func Generate(start, end time.Time) ([]Session, error) {
	start, end = dateOf(start), dateOf(end)
	if start.After(end) {
		return nil, core.NewValidationError(ErrInvalidRange,
			core.FieldError{Field: "start_date", Error: ErrInvalidRange.Error()})
	}

	var (
		sessions []Session
		week     time.Time
		perWeek  int
		number   int
	)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Sunday {
			continue
		}
		if ws := weekStart(day); !ws.Equal(week) {
			week = ws
			perWeek = 0
		}
		if perWeek >= maxSessionsPerWeek {
			continue
		}
		perWeek++
		number++
		sessions = append(sessions, Session{Number: number, Date: day})
	}
	return sessions, nil
}

// weekStart returns the Monday on/before the given day.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
