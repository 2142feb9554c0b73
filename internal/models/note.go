// Package models defines the domain types for studynotes.
package models

import "time"

// Note is the metadata row describing one uploaded file plus the public URL
// of its bytes in the bucket.
type Note struct {
	ID              string    `json:"id"`
	FileName        string    `json:"file_name"`
	FileDescription string    `json:"file_description"`
	Tags            []string  `json:"tags"`
	FileURL         string    `json:"file_url"`
	FileType        string    `json:"file_type"`
	UploadedBy      string    `json:"uploaded_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// User is an account held by the bundled identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the principal resolved from a bearer token.
type Identity struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Session is what sign-in hands back to the client.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
