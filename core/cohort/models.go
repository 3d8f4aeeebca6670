package cohort

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

type (
	// Cohort is a named intake of students sharing one class calendar.
	Cohort struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	// ClassSession is one scheduled class meeting of a cohort.
	ClassSession struct {
		ID       string    `json:"id"`
		CohortID string    `json:"cohort_id"`
		Number   int       `json:"number"`
		Date     time.Time `json:"date"`
	}

	// Attendance is a student's presence record for one class session,
	// with the sats reward granted for it.
	Attendance struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		StudentID string    `json:"student_id"`
		Present   bool      `json:"present"`
		Sats      int       `json:"sats"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}
)

const dateLayout = "2006-01-02"

// NewCohort contains information needed to create a new Cohort. Dates come
// in as YYYY-MM-DD strings and are parsed during validation.
type NewCohort struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required,dateonly"`
	EndDate   string `json:"end_date" validate:"required,dateonly"`

	start time.Time
	end   time.Time
}

func (nc *NewCohort) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	if err := validate.Struct(nc); err != nil {
		return err
	}

	// dateonly guarantees the shape; parsing pins the values
	start, err := time.Parse(dateLayout, nc.StartDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "start_date", Error: "invalid date"})
	}
	end, err := time.Parse(dateLayout, nc.EndDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "end_date", Error: "invalid date"})
	}
	nc.start, nc.end = start, end
	return nil
}

// MarkAttendance contains information needed to record a student's
// attendance for a class session.
type MarkAttendance struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.StudentID = core.CleanString(ma.StudentID)
	return validate.Struct(ma)
}

// StudentReport is a student's attendance history with the accumulated
// sats balance.
type StudentReport struct {
	Records   []Attendance `json:"records"`
	TotalSats int          `json:"total_sats"`
}
