package inmemdb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/cohort"
)

type cohortRepository struct {
	db *cohortTables
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(db *DB) *cohortRepository {
	return &cohortRepository{db: db.cohort}
}

func (repo *cohortRepository) CreateCohort(c cohort.Cohort, sessions []cohort.ClassSession) (cohort.Cohort, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = uuid.New().String()
	repo.db.cohorts[c.ID] = &c
	for _, sess := range sessions {
		sess := sess
		sess.ID = uuid.New().String()
		sess.CohortID = c.ID
		repo.db.sessions[sess.ID] = &sess
	}
	return c, nil
}

func (repo *cohortRepository) QueryAllCohorts(_ ...core.DBOrdering) ([]cohort.Cohort, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cohorts := make([]cohort.Cohort, 0, len(repo.db.cohorts))
	for _, c := range repo.db.cohorts {
		cohorts = append(cohorts, *c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].CreatedAt.Before(cohorts[j].CreatedAt) })
	return cohorts, nil
}

func (repo *cohortRepository) GetCohortByID(id string) (cohort.Cohort, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.cohorts[id]; ok {
		return *c, nil
	}
	return cohort.Cohort{}, cohort.ErrNotFound
}

func (repo *cohortRepository) GetSessionByID(id string) (cohort.ClassSession, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return cohort.ClassSession{}, cohort.ErrSessionNotFound
}

func (repo *cohortRepository) QuerySessionsByCohortID(cohortID string) ([]cohort.ClassSession, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sessions []cohort.ClassSession
	for _, sess := range repo.db.sessions {
		if sess.CohortID == cohortID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Number < sessions[j].Number })
	return sessions, nil
}

func (repo *cohortRepository) UpsertAttendance(att cohort.Attendance) (cohort.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := att.SessionID + ":" + att.StudentID
	if orig, ok := repo.db.attendances[key]; ok {
		orig.Present = att.Present
		orig.Sats = att.Sats
		orig.UpdatedAt = att.UpdatedAt
		return *orig, nil
	}
	att.ID = uuid.New().String()
	repo.db.attendances[key] = &att
	return att, nil
}

func (repo *cohortRepository) QueryAttendanceBySessionID(sessionID string) ([]cohort.Attendance, error) {
	return repo.queryAttendance(func(att cohort.Attendance) bool { return att.SessionID == sessionID })
}

func (repo *cohortRepository) QueryAttendanceByStudentID(studentID string) ([]cohort.Attendance, error) {
	return repo.queryAttendance(func(att cohort.Attendance) bool { return att.StudentID == studentID })
}

func (repo *cohortRepository) queryAttendance(match func(cohort.Attendance) bool) ([]cohort.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var records []cohort.Attendance
	for _, att := range repo.db.attendances {
		if match(*att) {
			records = append(records, *att)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}
