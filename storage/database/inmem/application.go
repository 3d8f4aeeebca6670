package inmemdb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/application"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) query() []application.Application {
	apps := make([]application.Application, 0, len(repo.db.table))
	for _, app := range repo.db.table {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps
}

func (repo *applicationRepository) CheckEmailUniqueness(email string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, app := range repo.db.table {
		if app.Email == email {
			return application.ErrEmailExists
		}
	}
	return nil
}

func (repo *applicationRepository) CreateApplication(app application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	app.ID = uuid.New().String()
	repo.db.table[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) GetApplicationByID(id string) (application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if app, ok := repo.db.table[id]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) FilterApplications(filter application.QueryFilter, _ ...core.DBOrdering) ([]application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var apps []application.Application
	for _, app := range repo.query() {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (repo *applicationRepository) UpdateApplication(app application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[app.ID]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	orig.Status = app.Status
	orig.UpdatedAt = app.UpdatedAt
	return *orig, nil
}
