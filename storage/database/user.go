package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time
	}
	return usr
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

const userCols = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	var conds []string
	var args []interface{}
	if username != "" {
		args = append(args, username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}
	if email != "" {
		args = append(args, email)
		conds = append(conds, fmt.Sprintf("email = $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil
	}

	q := fmt.Sprintf(`SELECT %s FROM "user" WHERE (%s)`, userCols, strings.Join(conds, " OR "))
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		args = append(args, pq.Array(ids))
		q += fmt.Sprintf(" AND id <> ALL($%d)", len(args))
	}

	var rows []userRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `
		INSERT INTO "user" (id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.Exec(q,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive,
		pq.StringArray(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, fmt.Sprintf(`SELECT %s FROM "user"`, userCols)); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) GetUserByID(id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM "user" WHERE id = $1`, userCols), id)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByUsername(username string) (user.User, error) {
	var row userRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM "user" WHERE username = $1`, userCols), username)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by username")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByEmail(email string) (user.User, error) {
	var row userRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM "user" WHERE email = $1`, userCols), email)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by email")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	var row userRow
	err := repo.db.Get(&row, fmt.Sprintf(`SELECT %s FROM "user" WHERE username = $1 OR email = $1`, userCols), username)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) FilterUsers(filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var conds []string
	var args []interface{}

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR username ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			args = append(args, role+"%")
			roleConds = append(roleConds, fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE $%d)", len(args)))
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo.UTC())
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	q := fmt.Sprintf(`SELECT %s FROM "user"`, userCols)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderingClause(ordering)

	var rows []userRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	sets := []string{"name = $1", "username = $2", "email = $3", "updated_at = $4"}
	args := []interface{}{usr.Name, usr.Username, usr.Email, usr.UpdatedAt}

	if usr.Roles != nil {
		args = append(args, pq.StringArray(usr.Roles))
		sets = append(sets, fmt.Sprintf("roles = $%d", len(args)))
	}
	if usr.PasswordHash != nil {
		args = append(args, usr.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if isActive != nil {
		args = append(args, *isActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}

	args = append(args, usr.ID)
	q := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userCols)

	var row userRow
	if err := repo.db.Get(&row, q, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateOrCreateUser(usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(usr)
	}
	return repo.UpdateUser(usr, nil)
}

func (repo userRepository) SetLastLogin(id string, ts time.Time) error {
	if _, err := repo.db.Exec(`UPDATE "user" SET last_login = $1 WHERE id = $2`, ts, id); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func orderingClause(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
