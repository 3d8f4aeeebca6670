package application

import (
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("application not found")
	ErrEmailExists    = errors.New("an application with this email already exists")
	ErrAlreadyDecided = errors.New("application has already been decided")
)

type (
	Repository interface {
		CheckEmailUniqueness(email string) error
		CreateApplication(app Application) (Application, error)
		GetApplicationByID(id string) (Application, error)
		// FilterApplications applies AND operation on available QueryFilter fields.
		FilterApplications(filter QueryFilter, ordering ...core.DBOrdering) ([]Application, error)
		UpdateApplication(app Application) (Application, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, mailSvc: mailSvc, conf: conf}
}

// Submit records a pending application and acknowledges it by email.
// The email must be new to the system: neither another application nor an
// existing account may carry it.
func (svc *Service) Submit(na NewApplication) (Application, error) {
	if err := svc.repo.CheckEmailUniqueness(na.Email); err != nil {
		if err == ErrEmailExists {
			return Application{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return Application{}, err
	}
	if err := svc.usrSvc.CheckUniqueness("", na.Email); err != nil {
		return Application{}, err
	}

	now := time.Now().UTC()
	app, err := svc.repo.CreateApplication(Application{
		Name:       na.Name,
		Email:      na.Email,
		Phone:      na.Phone,
		Motivation: na.Motivation,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Application{}, errors.Wrap(err, "creating application")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.Name, Address: app.Email}},
		Subject:      "We received your application",
		TemplateName: "application_received",
		TemplateData: struct{ Name string }{app.Name},
	})
	return app, nil
}

func (svc *Service) GetByID(id string) (Application, error) {
	return svc.repo.GetApplicationByID(id)
}

func (svc *Service) Filter(filter QueryFilter, ordering ...core.DBOrdering) ([]Application, error) {
	return svc.repo.FilterApplications(filter, ordering...)
}

// Approve turns a pending application into an invited student account.
// The new user receives a password-set link by email; the application's
// own confirmation is implicit in that invite.
func (svc *Service) Approve(id string) (Application, error) {
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return Application{}, err
	}
	if !app.IsPending() {
		return Application{}, ErrAlreadyDecided
	}

	if _, err = svc.usrSvc.Invite(app.Name, app.Email, []string{user.RoleStudent}); err != nil {
		return Application{}, errors.Wrap(err, "inviting applicant")
	}

	app.Status = StatusApproved
	app.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateApplication(app)
}

// Reject marks a pending application rejected. No email goes out; rejections
// are communicated off-platform.
func (svc *Service) Reject(id string) (Application, error) {
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return Application{}, err
	}
	if !app.IsPending() {
		return Application{}, ErrAlreadyDecided
	}

	app.Status = StatusRejected
	app.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateApplication(app)
}
