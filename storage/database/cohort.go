package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/cohort"
)

type (
	cohortRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		StartDate time.Time `db:"start_date"`
		EndDate   time.Time `db:"end_date"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	classSessionRow struct {
		ID       string    `db:"id"`
		CohortID string    `db:"cohort_id"`
		Number   int       `db:"number"`
		Date     time.Time `db:"date"`
	}

	attendanceRow struct {
		ID        string    `db:"id"`
		SessionID string    `db:"session_id"`
		StudentID string    `db:"student_id"`
		Present   bool      `db:"present"`
		Sats      int       `db:"sats"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

func (r cohortRow) toCohort() cohort.Cohort {
	return cohort.Cohort{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r classSessionRow) toSession() cohort.ClassSession {
	return cohort.ClassSession{ID: r.ID, CohortID: r.CohortID, Number: r.Number, Date: r.Date}
}

func (r attendanceRow) toAttendance() cohort.Attendance {
	return cohort.Attendance{
		ID:        r.ID,
		SessionID: r.SessionID,
		StudentID: r.StudentID,
		Present:   r.Present,
		Sats:      r.Sats,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const (
	cohortCols     = `id, name, start_date, end_date, created_at, updated_at`
	sessionCols    = `id, cohort_id, number, date`
	attendanceCols = `id, session_id, student_id, present, sats, created_at, updated_at`
)

type cohortRepository struct {
	db *sqlx.DB
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(db *sqlx.DB) *cohortRepository {
	return &cohortRepository{db: db}
}

func (repo cohortRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo cohortRepository) CreateCohort(c cohort.Cohort, sessions []cohort.ClassSession) (cohort.Cohort, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	c.ID = uuid.New().String()
	q := `
		INSERT INTO cohort (id, name, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.Exec(q, c.ID, c.Name, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt); err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "inserting cohort")
	}

	sq := `INSERT INTO class_session (id, cohort_id, number, date) VALUES ($1, $2, $3, $4)`
	for _, sess := range sessions {
		if _, err = tx.Exec(sq, uuid.New().String(), c.ID, sess.Number, sess.Date); err != nil {
			return cohort.Cohort{}, errors.Wrap(err, "inserting class session")
		}
	}

	if err = tx.Commit(); err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "committing tx")
	}
	return c, nil
}

func (repo cohortRepository) QueryAllCohorts(ordering ...core.DBOrdering) ([]cohort.Cohort, error) {
	q := fmt.Sprintf(`SELECT %s FROM cohort`, cohortCols) + orderingClause(ordering)
	var rows []cohortRow
	if err := repo.db.Select(&rows, q); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	cohorts := make([]cohort.Cohort, 0, len(rows))
	for _, r := range rows {
		cohorts = append(cohorts, r.toCohort())
	}
	return cohorts, nil
}

func (repo cohortRepository) GetCohortByID(id string) (cohort.Cohort, error) {
	if _, err := uuid.Parse(id); err != nil {
		return cohort.Cohort{}, cohort.ErrNotFound
	}
	var row cohortRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM cohort WHERE id = $1`, cohortCols), id)
	if err != nil {
		return cohort.Cohort{}, repo.trapNoRowsErr(err, cohort.ErrNotFound, "finding cohort by ID")
	}
	return row.toCohort(), nil
}

func (repo cohortRepository) GetSessionByID(id string) (cohort.ClassSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return cohort.ClassSession{}, cohort.ErrSessionNotFound
	}
	var row classSessionRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM class_session WHERE id = $1`, sessionCols), id)
	if err != nil {
		return cohort.ClassSession{}, repo.trapNoRowsErr(err, cohort.ErrSessionNotFound, "finding class session by ID")
	}
	return row.toSession(), nil
}

func (repo cohortRepository) QuerySessionsByCohortID(cohortID string) ([]cohort.ClassSession, error) {
	q := fmt.Sprintf(`SELECT %s FROM class_session WHERE cohort_id = $1 ORDER BY number`, sessionCols)
	var rows []classSessionRow
	if err := repo.db.Select(&rows, q, cohortID); err != nil {
		return nil, errors.Wrap(err, "querying class sessions")
	}
	sessions := make([]cohort.ClassSession, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo cohortRepository) UpsertAttendance(att cohort.Attendance) (cohort.Attendance, error) {
	q := fmt.Sprintf(`
		INSERT INTO attendance (id, session_id, student_id, present, sats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, student_id) DO UPDATE
		SET present = EXCLUDED.present, sats = EXCLUDED.sats, updated_at = EXCLUDED.updated_at
		RETURNING %s`, attendanceCols)

	var row attendanceRow
	err := repo.db.Get(&row, q,
		uuid.New().String(), att.SessionID, att.StudentID, att.Present, att.Sats, att.CreatedAt, att.UpdatedAt,
	)
	if err != nil {
		return cohort.Attendance{}, errors.Wrap(err, "upserting attendance")
	}
	return row.toAttendance(), nil
}

func (repo cohortRepository) QueryAttendanceBySessionID(sessionID string) ([]cohort.Attendance, error) {
	return repo.queryAttendance("session_id", sessionID)
}

func (repo cohortRepository) QueryAttendanceByStudentID(studentID string) ([]cohort.Attendance, error) {
	return repo.queryAttendance("student_id", studentID)
}

func (repo cohortRepository) queryAttendance(col, id string) ([]cohort.Attendance, error) {
	q := fmt.Sprintf(`SELECT %s FROM attendance WHERE %s = $1 ORDER BY created_at`, attendanceCols, col)
	var rows []attendanceRow
	if err := repo.db.Select(&rows, q, id); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]cohort.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toAttendance())
	}
	return records, nil
}
