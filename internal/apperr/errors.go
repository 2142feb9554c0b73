// Package apperr holds the error kinds shared by every layer. HTTP status
// mapping happens once, in the api package.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnauthenticated = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrTooLarge        = errors.New("payload too large")
)

type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string { return e.msg }
func (e *detailed) Unwrap() error { return e.kind }

// WithDetail returns an error that matches kind under errors.Is but carries a
// message meant for the caller.
func WithDetail(kind error, format string, args ...any) error {
	return &detailed{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Invalid is shorthand for WithDetail(ErrValidation, ...).
func Invalid(format string, args ...any) error {
	return WithDetail(ErrValidation, format, args...)
}

// Message returns the caller-facing text of err: the detail attached with
// WithDetail if any, else the text of err itself.
func Message(err error) string {
	var d *detailed
	if errors.As(err, &d) {
		return d.msg
	}
	return err.Error()
}

// UpstreamError reports a failure of a backend collaborator (database,
// bucket, identity provider). Message and Code are passed through to the
// client as details.
type UpstreamError struct {
	Op   string
	Code string
	Err  error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError unless it is nil or already one.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
