package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/application"
)

type applicationRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Phone      string    `db:"phone"`
	Motivation string    `db:"motivation"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r applicationRow) toApplication() application.Application {
	return application.Application{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Motivation: r.Motivation,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

const applicationCols = `id, name, email, phone, motivation, status, created_at, updated_at`

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo applicationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return application.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo applicationRepository) CheckEmailUniqueness(email string) error {
	var exists bool
	err := repo.db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM application WHERE email = $1)`, email)
	if err != nil {
		return errors.Wrap(err, "checking application uniqueness")
	}
	if exists {
		return application.ErrEmailExists
	}
	return nil
}

func (repo applicationRepository) CreateApplication(app application.Application) (application.Application, error) {
	app.ID = uuid.New().String()
	q := `
		INSERT INTO application (id, name, email, phone, motivation, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.Exec(q,
		app.ID, app.Name, app.Email, app.Phone, app.Motivation, app.Status, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (repo applicationRepository) GetApplicationByID(id string) (application.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return application.Application{}, application.ErrNotFound
	}
	var row applicationRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM application WHERE id = $1`, applicationCols), id)
	if err != nil {
		return application.Application{}, repo.trapNoRowsErr(err, "finding application by ID")
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) FilterApplications(filter application.QueryFilter, ordering ...core.DBOrdering) ([]application.Application, error) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	q := fmt.Sprintf(`SELECT %s FROM application`, applicationCols)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderingClause(ordering)

	var rows []applicationRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.toApplication())
	}
	return apps, nil
}

func (repo applicationRepository) UpdateApplication(app application.Application) (application.Application, error) {
	q := fmt.Sprintf(`
		UPDATE application SET status = $1, updated_at = $2 WHERE id = $3
		RETURNING %s`, applicationCols)

	var row applicationRow
	if err := repo.db.Get(&row, q, app.Status, app.UpdatedAt, app.ID); err != nil {
		return application.Application{}, repo.trapNoRowsErr(err, "updating application")
	}
	return row.toApplication(), nil
}
