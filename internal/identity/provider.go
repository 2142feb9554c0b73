// Package identity issues and verifies bearer tokens for accounts held in
// the notes database.
package identity

import (
	"context"
	"time"

	"github.com/starford/studynotes/internal/models"
)

// Provider is the identity collaborator used by the HTTP layer and the MCP
// tools.
type Provider interface {
	SignUp(ctx context.Context, email, password, fullName string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	// SignOut revokes token. Invalid or missing tokens are ignored.
	SignOut(ctx context.Context, token string) error
	// Verify resolves a bearer token. Every verification failure is
	// apperr.ErrUnauthenticated.
	Verify(ctx context.Context, token string) (*models.Identity, error)
	// RequestPasswordReset never reveals whether email is registered.
	RequestPasswordReset(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, resetToken, newPassword string) error
}

// UserStore persists accounts and reset tokens.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	CreatePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// Revoker remembers signed-out token ids until they would have expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Notifier delivers password-reset links.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}
