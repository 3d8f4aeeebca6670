package application

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Application statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Application is a prospective student's enrollment request. It starts out
// pending and is decided exactly once.
type Application struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Motivation string    `json:"motivation"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (a *Application) IsPending() bool { return a.Status == StatusPending }

// NewApplication contains information needed to submit an Application.
type NewApplication struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"omitempty,min=7"`
	Motivation string `json:"motivation" validate:"required"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Motivation = core.CleanString(na.Motivation)
	return validate.Struct(na)
}

type QueryFilter struct {
	Status string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
