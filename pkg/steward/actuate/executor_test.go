package actuate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewExecExecutor_RequiresCommand(t *testing.T) {
	t.Parallel()

	if _, err := NewExecExecutor(Config{}, nil); err == nil {
		t.Error("expected an error without a command")
	}
}

func TestExecExecutor_SubstitutesPlaceholder(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "delivered.txt")
	e, err := NewExecExecutor(Config{
		Command: []string{"sh", "-c", "printf %s '{instruction}' > " + out},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Dispatch(context.Background(), "please continue the build"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "please continue the build" {
		t.Errorf("unexpected delivery payload: %q", data)
	}
}

func TestExecExecutor_PipesStdinWithoutPlaceholder(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "delivered.txt")
	e, err := NewExecExecutor(Config{
		Command: []string{"sh", "-c", "cat > " + out},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Dispatch(context.Background(), "stdin delivery"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "stdin delivery" {
		t.Errorf("unexpected delivery payload: %q", data)
	}
}

func TestExecExecutor_SurfacesCommandFailure(t *testing.T) {
	t.Parallel()
	e, err := NewExecExecutor(Config{
		Command: []string{"sh", "-c", "echo delivery broke >&2; exit 3"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = e.Dispatch(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error from a failing command")
	}
	if !strings.Contains(err.Error(), "delivery broke") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}

func TestLogExecutor_AlwaysSucceeds(t *testing.T) {
	t.Parallel()
	e := NewLogExecutor(nil)

	if err := e.Dispatch(context.Background(), "dry run instruction"); err != nil {
		t.Errorf("log executor should never fail: %v", err)
	}
}
