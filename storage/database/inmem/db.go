package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/application"
	"github.com/darasahq/darasa/core/cohort"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user        *userTable
		application *applicationTable
		cohort      *cohortTables
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	applicationTable struct {
		mutex sync.RWMutex
		table map[string]*application.Application
	}

	cohortTables struct {
		mutex       sync.RWMutex
		cohorts     map[string]*cohort.Cohort
		sessions    map[string]*cohort.ClassSession
		attendances map[string]*cohort.Attendance // keyed by sessionID+":"+studentID
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		application: &applicationTable{table: make(map[string]*application.Application)},
		cohort: &cohortTables{
			cohorts:     make(map[string]*cohort.Cohort),
			sessions:    make(map[string]*cohort.ClassSession),
			attendances: make(map[string]*cohort.Attendance),
		},
	}
	return db, nil
}
