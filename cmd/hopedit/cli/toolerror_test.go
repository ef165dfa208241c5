// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestToolError_ErrorWithoutHint(t *testing.T) {
	err := Validation("missing address")
	if err.Error() != "missing address" {
		t.Errorf("Error() = %q, want %q", err.Error(), "missing address")
	}
}

func TestToolError_ErrorWithHint(t *testing.T) {
	err := Validation("missing address").
		WithHint("Pass an address such as 'ssh:host:/path'.")

	want := "missing address\n\nPass an address such as 'ssh:host:/path'."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestToolError_WithHintReturnsReceiver(t *testing.T) {
	original := Validation("bad input")
	if chained := original.WithHint("fix it"); chained != original {
		t.Error("WithHint should return the same pointer")
	}
}

func TestToolError_UnwrapAndCategory(t *testing.T) {
	sentinel := errors.New("host unreachable")
	inner := &ToolError{Category: CategoryTransient, Err: fmt.Errorf("connecting: %w", sentinel)}
	inner.WithHint("check the network")
	wrapped := fmt.Errorf("cat: %w", inner)

	var toolErr *ToolError
	if !errors.As(wrapped, &toolErr) {
		t.Fatal("errors.As should find ToolError in wrapped chain")
	}
	if toolErr.Hint != "check the network" {
		t.Errorf("Hint = %q after unwrap", toolErr.Hint)
	}
	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should reach the inner error through ToolError")
	}
	if CategoryOf(wrapped) != CategoryTransient {
		t.Errorf("CategoryOf = %q, want transient", CategoryOf(wrapped))
	}
	if CategoryOf(sentinel) != CategoryInternal {
		t.Errorf("CategoryOf(plain error) = %q, want internal", CategoryOf(sentinel))
	}
}

func TestToolError_Constructors(t *testing.T) {
	tests := []struct {
		err  *ToolError
		want ErrorCategory
	}{
		{Validation("x"), CategoryValidation},
		{NotFound("x"), CategoryNotFound},
		{Forbidden("x"), CategoryForbidden},
		{Conflict("x"), CategoryConflict},
		{Transient("x"), CategoryTransient},
		{Internal("x"), CategoryInternal},
	}
	for _, test := range tests {
		if test.err.Category != test.want {
			t.Errorf("category = %q, want %q", test.err.Category, test.want)
		}
	}
}
