package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/apperr"
	"github.com/iliyamo/restful-api/internal/cache"
	"github.com/iliyamo/restful-api/internal/model"
)

// AccountEntity is the cache key prefix for accounts.
const AccountEntity = "account"

type accountMapper struct{}

func (accountMapper) Entity() string { return AccountEntity }
func (accountMapper) Table() string  { return "accounts" }

func (accountMapper) Columns() []string {
	return []string{"username", "email", "password_hash", "role", "created_at"}
}

func (accountMapper) Values(a model.Account) []any {
	return []any{a.Username, strings.ToLower(a.Email), a.PasswordHash, string(a.Role), a.CreatedAt.UTC()}
}

// Only the role changes after registration.
func (accountMapper) MutableColumns() []string { return []string{"role"} }

func (accountMapper) MutableValues(a model.Account) []any { return []any{string(a.Role)} }

func (accountMapper) Scan(row RowScanner) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (accountMapper) WithID(a model.Account, id int64) model.Account {
	a.ID = id
	return a
}

// AccountRepo stores credential holders. The generic CRUD methods are cached
// (cached copies carry no password hash); the login lookups always read the
// database.
type AccountRepo struct {
	*EntityRepo[model.Account]
	db *sql.DB
}

func NewAccountRepo(db *sql.DB, c *cache.Cache, log zerolog.Logger, opts ...cache.Option) *AccountRepo {
	return &AccountRepo{
		EntityRepo: NewEntityRepo[model.Account](db, accountMapper{}, c, log, opts...),
		db:         db,
	}
}

// Taken reports which of username and email are already registered.
// Username comparison is case-sensitive, email comparison is not.
func (r *AccountRepo) Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	rows, err := r.db.QueryContext(ctx,
		"SELECT username, email FROM accounts WHERE username = ? OR email = ?",
		username, email)
	if err != nil {
		return false, false, r.storageErr("lookup", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u, e string
		if err := rows.Scan(&u, &e); err != nil {
			return false, false, r.storageErr("lookup", err)
		}
		usernameTaken = usernameTaken || u == username
		emailTaken = emailTaken || e == email
	}
	if err := rows.Err(); err != nil {
		return false, false, r.storageErr("lookup", err)
	}
	return usernameTaken, emailTaken, nil
}

// FindByLogin returns the account whose username equals login exactly or
// whose email equals login ignoring case. A username match wins when both
// exist. The result includes the password hash.
func (r *AccountRepo) FindByLogin(ctx context.Context, login string) (model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+r.selCol+" FROM accounts WHERE username = ? OR email = ? "+
			"ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END LIMIT 1",
		login, strings.ToLower(strings.TrimSpace(login)), login)
	a, err := r.m.Scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, apperr.NotFound("account not found")
		}
		return model.Account{}, r.storageErr("lookup", err)
	}
	return a, nil
}
