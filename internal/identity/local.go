package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
)

const minPasswordLen = 8

// Claims are the JWT claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// LocalConfig configures Local.
type LocalConfig struct {
	Secret   string
	TokenTTL time.Duration
	ResetTTL time.Duration
	// ResetURL is the page the reset link points at; the token is appended
	// as the "token" query parameter.
	ResetURL string
}

// Local is a Provider with bcrypt password hashes and HS256 tokens.
type Local struct {
	cfg      LocalConfig
	users    UserStore
	revoker  Revoker
	notifier Notifier
	now      func() time.Time
}

var _ Provider = (*Local)(nil)

// NewLocal creates a Local provider.
func NewLocal(cfg LocalConfig, users UserStore, revoker Revoker, notifier Notifier) (*Local, error) {
	if cfg.Secret == "" {
		return nil, errors.New("identity: secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Local{cfg: cfg, users: users, revoker: revoker, notifier: notifier, now: time.Now}, nil
}

func validatePassword(password string) error {
	if err := validation.Validate(password,
		validation.Required,
		validation.RuneLength(minPasswordLen, 72),
	); err != nil {
		return apperr.Invalid("password: %s", err.Error())
	}
	return nil
}

func (l *Local) SignUp(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return nil, apperr.Invalid("email: %s", err.Error())
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
		CreatedAt:    l.now().UTC(),
	}
	if err := l.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, apperr.WithDetail(apperr.ErrAlreadyExists, "email is already registered")
		}
		return nil, err
	}
	return u, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	invalid := apperr.WithDetail(apperr.ErrUnauthenticated, "invalid email or password")

	u, err := l.users.UserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, invalid
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, invalid
	}

	sess, err := l.issue(u)
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

func (l *Local) issue(u *models.User) (*models.Session, error) {
	now := l.now()
	exp := now.Add(l.cfg.TokenTTL)
	signed, err := l.sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: u.ID,
		Email:  u.Email,
	})
	if err != nil {
		return nil, err
	}
	return &models.Session{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp.UTC()}, nil
}

func (l *Local) sign(c *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(l.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

func (l *Local) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(l.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil || !parsed.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return claims, nil
}

func (l *Local) SignOut(ctx context.Context, token string) error {
	claims, err := l.parse(token)
	if err != nil {
		return nil
	}
	until := l.now().Add(l.cfg.TokenTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := l.revoker.Revoke(ctx, claims.ID, until); err != nil {
		return apperr.Upstream("revoke token", err)
	}
	return nil
}

func (l *Local) Verify(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := l.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := l.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Upstream("check token", err)
	}
	if revoked {
		return nil, apperr.ErrUnauthenticated
	}
	u, err := l.users.UserByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	id := &models.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (l *Local) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := l.users.UserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		slog.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := l.users.CreatePasswordReset(ctx, hashToken(token), u.ID, l.now().Add(l.cfg.ResetTTL)); err != nil {
		return err
	}
	if err := l.notifier.SendPasswordReset(ctx, u.Email, l.resetLink(token)); err != nil {
		return apperr.Upstream("send reset email", err)
	}
	return nil
}

// hashToken is how reset tokens are stored; the raw token only exists in the
// emailed link.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func (l *Local) resetLink(token string) string {
	base := l.cfg.ResetURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (l *Local) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	userID, err := l.users.ConsumePasswordReset(ctx, hashToken(resetToken), l.now())
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("reset token is invalid or expired")
	}
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	return l.users.UpdatePasswordHash(ctx, userID, string(hash))
}
