// Package testsupport holds fixture loaders and golden-file helpers shared by
// package tests.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// LoadAppSpec reads and validates a canonical document. Testing helpers fail
// the test on error to keep table tests concise.
func LoadAppSpec(t *testing.T, path string) *schema.AppSpec {
	t.Helper()

	app, err := LoadAppSpecFromPath(path)
	if err != nil {
		t.Fatalf("load app spec: %v", err)
	}
	return app
}

// LoadAppSpecFromPath returns the validated AppSpec without requiring
// testing.T, for callers wiring fixtures in setup functions.
func LoadAppSpecFromPath(path string) (*schema.AppSpec, error) {
	if path == "" {
		return nil, errors.New("testsupport: document path is required")
	}
	data, err := validation.LoadRawFile(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: load document: %w", err)
	}
	app, err := validation.Validate(data, validation.Options{Input: path})
	if err != nil {
		return nil, fmt.Errorf("testsupport: validate document: %w", err)
	}
	return app, nil
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// AssertGolden compares got with the golden at path byte for byte, or
// rewrites the golden when UPDATE_GOLDENS is set.
func AssertGolden(t *testing.T, path string, got []byte) {
	t.Helper()
	if WriteMaybeGolden(t, path, got) {
		return
	}
	want := MustReadGolden(t, path)
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Fatalf("golden mismatch for %s (-want +got):\n%s", path, diff)
	}
}
