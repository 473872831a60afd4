package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restful-api/internal/apperr"
	"github.com/iliyamo/restful-api/internal/database"
	"github.com/iliyamo/restful-api/internal/model"
)

// ErrTokenReused is matched by the *ReuseError Rotate returns when the
// presented token had already been revoked.
var ErrTokenReused = errors.New("refresh token reused")

// ReuseError describes a replayed refresh token. It matches both
// ErrTokenReused and apperr.ErrInvalidRefreshToken.
type ReuseError struct {
	AccountID int64
	FamilyID  string
	Revoked   int64 // tokens of the family revoked by this detection
}

func (e *ReuseError) Error() string {
	return fmt.Sprintf("refresh token reused (family %s, %d revoked)", e.FamilyID, e.Revoked)
}

func (e *ReuseError) Is(target error) bool {
	return target == ErrTokenReused || target == apperr.ErrInvalidRefreshToken
}

const tokenColumns = "id, account_id, token_hash, family_id, expires_at, revoked, revoked_at, created_at"

// TokenRepo persists refresh tokens. Only the SHA-256 hash of a token is
// stored. Refresh tokens are never cached.
type TokenRepo struct {
	db      *sql.DB
	dialect database.Dialect
	log     zerolog.Logger
}

func NewTokenRepo(db *sql.DB, dialect database.Dialect, log zerolog.Logger) *TokenRepo {
	return &TokenRepo{db: db, dialect: dialect, log: log.With().Str("repo", "refresh_tokens").Logger()}
}

// Store inserts a new active token and returns its id.
func (r *TokenRepo) Store(ctx context.Context, t model.RefreshToken) (int64, error) {
	id, err := insertToken(ctx, r.db, t)
	if err != nil {
		return 0, r.storageErr("store", err)
	}
	return id, nil
}

// FindByHash returns the token row with the given hash regardless of its
// state, or apperr.ErrNotFound.
func (r *TokenRepo) FindByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash = ? LIMIT 1", hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, apperr.NotFound("refresh token not found")
		}
		return model.RefreshToken{}, r.storageErr("find", err)
	}
	return t, nil
}

// Rotate exchanges the token identified by presentedHash for next in one
// transaction: the presented row is locked, checked, flipped to revoked and
// next is inserted into the same family and account. It returns the
// presented row and the stored successor.
//
// A missing or expired token yields apperr.ErrInvalidRefreshToken. A token
// that was already revoked is a replay: every token of its family is revoked
// and a *ReuseError is returned.
func (r *TokenRepo) Rotate(ctx context.Context, presentedHash string, next model.RefreshToken, now time.Time) (prev, stored model.RefreshToken, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return prev, stored, r.storageErr("rotate", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	prev, err = scanToken(tx.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash = ?"+r.dialect.ForUpdate(),
		presentedHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return prev, stored, invalidToken("unknown refresh token")
		}
		return prev, stored, r.storageErr("rotate", err)
	}

	if prev.Revoked {
		n, err := revokeFamily(ctx, tx, prev.FamilyID, now)
		if err != nil {
			return prev, stored, r.storageErr("revoke family", err)
		}
		if err := tx.Commit(); err != nil {
			return prev, stored, r.storageErr("revoke family", err)
		}
		committed = true
		return prev, stored, &ReuseError{AccountID: prev.AccountID, FamilyID: prev.FamilyID, Revoked: n}
	}
	if !now.Before(prev.ExpiresAt) {
		return prev, stored, invalidToken("refresh token expired")
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE id = ? AND revoked = 0",
		now.UTC(), prev.ID)
	if err != nil {
		return prev, stored, r.storageErr("rotate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return prev, stored, r.storageErr("rotate", err)
	}
	if n != 1 {
		// another rotation of the same token won
		return prev, stored, invalidToken("refresh token already used")
	}

	next.AccountID = prev.AccountID
	next.FamilyID = prev.FamilyID
	next.ID, err = insertToken(ctx, tx, next)
	if err != nil {
		return prev, stored, r.storageErr("rotate", err)
	}
	if err := tx.Commit(); err != nil {
		return prev, stored, r.storageErr("rotate", err)
	}
	committed = true

	revokedAt := now.UTC()
	prev.Revoked, prev.RevokedAt = true, &revokedAt
	return prev, next, nil
}

// RevokeByHash revokes one token. It reports whether an active token was
// found.
func (r *TokenRepo) RevokeByHash(ctx context.Context, hash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE token_hash = ? AND revoked = 0",
		now.UTC(), hash)
	if err != nil {
		return false, r.storageErr("revoke", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.storageErr("revoke", err)
	}
	return n > 0, nil
}

// RevokeFamily revokes every active token descending from one login.
func (r *TokenRepo) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	n, err := revokeFamily(ctx, r.db, familyID, now)
	if err != nil {
		return 0, r.storageErr("revoke family", err)
	}
	return n, nil
}

// RevokeAllForAccount revokes every active token of an account.
func (r *TokenRepo) RevokeAllForAccount(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE account_id = ? AND revoked = 0",
		now.UTC(), accountID)
	if err != nil {
		return 0, r.storageErr("revoke all", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.storageErr("revoke all", err)
	}
	return n, nil
}

// DeleteExpired removes tokens whose expiry is before now and returns how
// many rows were deleted.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, r.storageErr("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.storageErr("purge", err)
	}
	return n, nil
}

func (r *TokenRepo) storageErr(op string, err error) error {
	r.log.Error().Err(err).Str("op", op).Msg("storage failure")
	return apperr.Storage(fmt.Sprintf("refresh token %s failed", op), err)
}

func invalidToken(msg string) error {
	return &apperr.Error{Kind: apperr.ErrInvalidRefreshToken, Msg: msg}
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t model.RefreshToken) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (account_id, token_hash, family_id, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		t.AccountID, t.TokenHash, t.FamilyID, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func revokeFamily(ctx context.Context, db execer, familyID string, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE family_id = ? AND revoked = 0",
		now.UTC(), familyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanToken(row RowScanner) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.FamilyID,
		&t.ExpiresAt, &t.Revoked, &revokedAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if revokedAt.Valid {
		ra := revokedAt.Time.UTC()
		t.RevokedAt = &ra
	}
	return t, nil
}
