package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationErrorIs(t *testing.T) {
	err := NewConfigurationError("chunker", "overlap %d >= size %d", 10, 5)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if IsTransient(err) {
		t.Error("configuration error must not be transient")
	}

	var ce *ConfigurationError
	if !errors.As(err, &ce) || ce.Op != "chunker" {
		t.Errorf("expected ConfigurationError with op chunker, got %#v", err)
	}
}

func TestTransientWrapping(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("embed batch: %w", Transient("embed", base))

	if !IsTransient(err) {
		t.Fatal("expected wrapped error to be transient")
	}
	if !errors.Is(err, base) {
		t.Error("expected original cause to be preserved")
	}
	if Transient("embed", nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
}

func TestModelMismatchIsConfiguration(t *testing.T) {
	err := fmt.Errorf("load: %w", &ModelMismatchError{IndexModel: "a", QueryModel: "b"})
	if !errors.Is(err, ErrConfiguration) {
		t.Error("model mismatch should be a configuration error")
	}
	var mm *ModelMismatchError
	if !errors.As(err, &mm) {
		t.Fatal("expected ModelMismatchError")
	}
	if mm.IndexModel != "a" || mm.QueryModel != "b" {
		t.Errorf("unexpected models: %+v", mm)
	}
}

func TestIndexFormatError(t *testing.T) {
	err := &IndexFormatError{Path: "/tmp/x.db", Reason: "missing manifest"}
	if !errors.Is(err, ErrIndexFormat) {
		t.Error("expected ErrIndexFormat")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("format error is not a configuration error")
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("known roles should be valid")
	}
	if Role("system").Valid() {
		t.Error("system role should be rejected")
	}
}
