package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
)

func newUser(email string) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     "Ada",
		PasswordHash: "hash",
		CreatedAt:    base,
	}
}

func TestCreateAndLookupUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	u := newUser("Ada@Example.com")
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := db.UserByEmail(ctx, " ada@example.COM ")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Email != "ada@example.com" {
		t.Errorf("got %+v", got)
	}

	got, err = db.UserByID(ctx, u.ID)
	if err != nil || got.FullName != "Ada" {
		t.Fatalf("UserByID = %+v, %v", got, err)
	}

	if _, err := db.UserByID(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UserByID(nope) err = %v", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.CreateUser(ctx, newUser("a@b.co"))
	if err := db.CreateUser(ctx, newUser("A@B.co")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	u := newUser("a@b.co")
	_ = db.CreateUser(ctx, u)

	if err := db.UpdatePasswordHash(ctx, u.ID, "new"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.UserByID(ctx, u.ID)
	if got.PasswordHash != "new" {
		t.Errorf("hash = %q", got.PasswordHash)
	}
	if err := db.UpdatePasswordHash(ctx, uuid.NewString(), "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	u := newUser("a@b.co")
	_ = db.CreateUser(ctx, u)

	if err := db.CreatePasswordReset(ctx, "h1", u.ID, base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	got, err := db.ConsumePasswordReset(ctx, "h1", base)
	if err != nil || got != u.ID {
		t.Fatalf("Consume = %q, %v", got, err)
	}
	if _, err := db.ConsumePasswordReset(ctx, "h1", base); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second consume err = %v", err)
	}
}

func TestExpiredPasswordReset(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	u := newUser("a@b.co")
	_ = db.CreateUser(ctx, u)
	_ = db.CreatePasswordReset(ctx, "h2", u.ID, base)

	if _, err := db.ConsumePasswordReset(ctx, "h2", base.Add(time.Minute)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
