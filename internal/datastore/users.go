package datastore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
)

const userColumns = `id, email, full_name, password_hash, created_at`

func scanUser(s rowScanner) (*models.User, error) {
	var u models.User
	if err := s.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, timeColumn{&u.CreatedAt}); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores a new account. A taken email yields ErrAlreadyExists.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`),
		u.ID, strings.ToLower(u.Email), u.FullName, u.PasswordHash, db.timeArg(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fail("create user", err)
	}
	return nil
}

// UserByEmail looks an account up by email, case-insensitively.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`),
		strings.ToLower(strings.TrimSpace(email)))
	return db.userRow(row, "get user")
}

// UserByID looks an account up by id.
func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	row := db.conn.QueryRowContext(ctx, db.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return db.userRow(row, "get user")
}

func (db *DB) userRow(row *sql.Row, op string) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fail(op, err)
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash of an account.
func (db *DB) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, userID)
	if err != nil {
		return fail("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CreatePasswordReset records a reset token by its hash.
func (db *DB) CreatePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES (?, ?, ?)`),
		tokenHash, userID, db.timeArg(expiresAt))
	if err != nil {
		return fail("create password reset", err)
	}
	return nil
}

// ConsumePasswordReset deletes the reset token and returns its user. Unknown
// and expired tokens yield ErrNotFound; either way the token is gone.
func (db *DB) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fail("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		userID    string
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx, db.rebind(`SELECT user_id, expires_at FROM password_resets WHERE token_hash = ?`), tokenHash).
		Scan(&userID, timeColumn{&expiresAt})
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fail("get password reset", err)
	}
	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM password_resets WHERE token_hash = ?`), tokenHash); err != nil {
		return "", fail("delete password reset", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fail("commit", err)
	}
	if now.After(expiresAt) {
		return "", apperr.ErrNotFound
	}
	return userID, nil
}
