package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{name: "validation", err: Validation("USERNAME_TAKEN", "taken"), sentinel: ErrValidation, want: true},
		{name: "conflict", err: Conflict("USER_REFERENCED", "in use", nil), sentinel: ErrReferentialConflict, want: true},
		{name: "not found", err: NotFound("TASK_NOT_FOUND", "missing"), sentinel: ErrNotFound, want: true},
		{name: "corrupt", err: Corrupt("BAD_JSON", "bad"), sentinel: ErrStorageCorrupt, want: true},
		{name: "wrapped", err: fmt.Errorf("update: %w", NotFound("TASK_NOT_FOUND", "missing")), sentinel: ErrNotFound, want: true},
		{name: "kind mismatch", err: Validation("X", "x"), sentinel: ErrNotFound, want: false},
		{name: "plain error", err: errors.New("boom"), sentinel: ErrValidation, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Fatalf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsIsMatchesSpecificCode(t *testing.T) {
	err := Validation("USERNAME_TAKEN", "taken")
	if !errors.Is(err, Validation("USERNAME_TAKEN", "")) {
		t.Fatal("expected code match")
	}
	if errors.Is(err, Validation("TITLE_REQUIRED", "")) {
		t.Fatal("different code should not match")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("wrap: %w", Conflict("STAGE_IN_USE", "", nil))); got != KindReferentialConflict {
		t.Fatalf("KindOf() = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain) = %q, want empty", got)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := Validation("TITLE_REQUIRED", "title is required").Error(); got != "TITLE_REQUIRED: title is required" {
		t.Fatalf("Error() = %q", got)
	}
	if got := ErrNotFound.Error(); got != "NOT_FOUND" {
		t.Fatalf("Error() = %q", got)
	}
}
