package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
)

// SignUpRequest is the request body for registering an account.
type SignUpRequest struct {
	Email    string `json:"email" example:"ada@example.com" validate:"required"`
	Password string `json:"password" example:"correct horse" validate:"required"`
	Name     string `json:"name" example:"Ada Lovelace"`
}

func (r SignUpRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

// SignInRequest is the request body for signing in.
type SignInRequest struct {
	Email    string `json:"email" example:"ada@example.com" validate:"required"`
	Password string `json:"password" example:"correct horse" validate:"required"`
}

func (r SignInRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

// ResetPasswordRequest starts the password reset flow.
type ResetPasswordRequest struct {
	Email string `json:"email" example:"ada@example.com" validate:"required"`
}

func (r ResetPasswordRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
	))
}

// UpdatePasswordRequest completes the password reset flow.
type UpdatePasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r UpdatePasswordRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Invalid("%s", err.Error())
}

// MessageResponse is returned by auth operations without a payload.
type MessageResponse struct {
	Message string `json:"message" example:"Logged out successfully" validate:"required"`
}

// SignUpResponse is returned after registration.
type SignUpResponse struct {
	Message string       `json:"message" validate:"required"`
	User    *models.User `json:"user" validate:"required"`
}

// SignInResponse carries the issued session.
type SignInResponse struct {
	Message string          `json:"message" validate:"required"`
	Session *models.Session `json:"session" validate:"required"`
	User    *models.User    `json:"user" validate:"required"`
}

// MeResponse is the identity behind the bearer token.
type MeResponse struct {
	User *models.Identity `json:"user" validate:"required"`
}

// UploadResponse is returned after a committed upload.
type UploadResponse struct {
	Status string       `json:"status" example:"success" validate:"required"`
	Data   *models.Note `json:"data" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Success bool          `json:"success" example:"true" validate:"required"`
	Data    []models.Note `json:"data" validate:"required"`
}

// NotesResponse wraps a list of notes.
type NotesResponse struct {
	Data []models.Note `json:"data" validate:"required"`
}

// NoteResponse wraps a single note.
type NoteResponse struct {
	Data *models.Note `json:"data" validate:"required"`
}

// DeleteResponse is returned after a note is deleted.
type DeleteResponse struct {
	Success bool   `json:"success" example:"true" validate:"required"`
	Message string `json:"message" example:"Note deleted successfully" validate:"required"`
}

// SuggestionsResponse lists matching titles.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions" validate:"required"`
}

// HealthResponse reports repository reachability.
type HealthResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
}
