package cohort

import (
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/schedule"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("cohort not found")
	ErrSessionNotFound = errors.New("class session not found")
	ErrNotAStudent     = errors.New("user is not an active student")
)

type (
	Repository interface {
		// CreateCohort persists the cohort and its generated class sessions
		// in one transaction.
		CreateCohort(c Cohort, sessions []ClassSession) (Cohort, error)
		QueryAllCohorts(ordering ...core.DBOrdering) ([]Cohort, error)
		GetCohortByID(id string) (Cohort, error)
		GetSessionByID(id string) (ClassSession, error)
		QuerySessionsByCohortID(cohortID string) ([]ClassSession, error)
		// UpsertAttendance records or overwrites the attendance keyed by
		// (SessionID, StudentID).
		UpsertAttendance(att Attendance) (Attendance, error)
		QueryAttendanceBySessionID(sessionID string) ([]Attendance, error)
		QueryAttendanceByStudentID(studentID string) ([]Attendance, error)
	}

	Service struct {
		repo   Repository
		usrSvc *user.Service
		conf   *core.Config
	}
)

func NewService(repo Repository, usrSvc *user.Service, conf *core.Config) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, conf: conf}
}

// Create persists a cohort along with its full class calendar.
func (svc *Service) Create(nc NewCohort) (Cohort, error) {
	classDates, err := schedule.Generate(nc.start, nc.end)
	if err != nil {
		return Cohort{}, err
	}

	now := time.Now().UTC()
	c := Cohort{
		Name:      nc.Name,
		StartDate: nc.start,
		EndDate:   nc.end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sessions := make([]ClassSession, 0, len(classDates))
	for _, s := range classDates {
		sessions = append(sessions, ClassSession{Number: s.Number, Date: s.Date})
	}
	return svc.repo.CreateCohort(c, sessions)
}

func (svc *Service) QueryAll(ordering ...core.DBOrdering) ([]Cohort, error) {
	return svc.repo.QueryAllCohorts(ordering...)
}

func (svc *Service) GetByID(id string) (Cohort, error) {
	return svc.repo.GetCohortByID(id)
}

func (svc *Service) Sessions(cohortID string) ([]ClassSession, error) {
	if _, err := svc.repo.GetCohortByID(cohortID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySessionsByCohortID(cohortID)
}

// Mark records a student's attendance for a class session. Presence earns
// the configured sats reward; absence earns none. Re-marking overwrites the
// previous record and its reward.
func (svc *Service) Mark(sessionID string, ma MarkAttendance) (Attendance, error) {
	sess, err := svc.repo.GetSessionByID(sessionID)
	if err != nil {
		return Attendance{}, err
	}

	usr, err := svc.usrSvc.GetByID(ma.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Attendance{}, ErrNotAStudent
		}
		return Attendance{}, err
	}
	if !usr.IsActive || !usr.IsStudent() {
		return Attendance{}, ErrNotAStudent
	}

	var sats int
	if ma.Present {
		sats = svc.conf.Rewards.SatsPerSession
	}
	now := time.Now().UTC()
	return svc.repo.UpsertAttendance(Attendance{
		SessionID: sess.ID,
		StudentID: usr.ID,
		Present:   ma.Present,
		Sats:      sats,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) SessionAttendance(sessionID string) ([]Attendance, error) {
	if _, err := svc.repo.GetSessionByID(sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendanceBySessionID(sessionID)
}

// StudentAttendance returns a student's attendance records and their sats
// balance.
func (svc *Service) StudentAttendance(studentID string) (StudentReport, error) {
	records, err := svc.repo.QueryAttendanceByStudentID(studentID)
	if err != nil {
		return StudentReport{}, err
	}
	report := StudentReport{Records: records}
	for _, att := range records {
		report.TotalSats += att.Sats
	}
	return report, nil
}
