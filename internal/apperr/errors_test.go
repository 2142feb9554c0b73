package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWithDetailMatchesKind(t *testing.T) {
	err := fmt.Errorf("upload: %w", Invalid("title is required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if got := Message(err); got != "title is required" {
		t.Errorf("Message = %q", got)
	}
}

func TestMessageFallsBackToText(t *testing.T) {
	if got := Message(ErrNotFound); got != "not found" {
		t.Errorf("Message = %q", got)
	}
}

func TestUpstreamDoesNotDoubleWrap(t *testing.T) {
	base := errors.New("connection refused")
	first := Upstream("insert note", base)
	second := Upstream("upload", fmt.Errorf("saga: %w", first))

	var ue *UpstreamError
	if !errors.As(second, &ue) {
		t.Fatal("expected UpstreamError")
	}
	if ue.Op != "insert note" {
		t.Errorf("op = %q, want insert note", ue.Op)
	}
	if !errors.Is(second, base) {
		t.Error("expected base error in chain")
	}
	if Upstream("x", nil) != nil {
		t.Error("nil error must stay nil")
	}
}
