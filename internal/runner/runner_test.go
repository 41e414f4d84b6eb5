package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/10gen/distropack/internal/models"
)

func TestOutput(t *testing.T) {
	r := &Runner{}
	out, err := r.Output(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q", out)
	}
}

func TestRunUsesDir(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}
	out, err := r.Output(context.Background(), dir, "pwd")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != dir {
		t.Errorf("pwd = %q, want %q", out, dir)
	}
}

func TestFailureSurfacesCommandLine(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}
	err := r.Run(context.Background(), dir, "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected failure")
	}

	var toolErr *models.ExternalToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %T, want ExternalToolError", err)
	}
	if toolErr.Dir != dir {
		t.Errorf("Dir = %q, want %q", toolErr.Dir, dir)
	}
	if toolErr.Args[0] != "sh" {
		t.Errorf("Args = %v", toolErr.Args)
	}
	if !strings.Contains(toolErr.Stderr, "boom") {
		t.Errorf("Stderr = %q, want it to carry the tool's stderr", toolErr.Stderr)
	}
	if !strings.Contains(err.Error(), dir) || !strings.Contains(err.Error(), "sh -c") {
		t.Errorf("message should name dir and command line: %q", err.Error())
	}
}

func TestTimeout(t *testing.T) {
	r := &Runner{Timeout: 50 * time.Millisecond}
	err := r.Run(context.Background(), t.TempDir(), "sleep", "5")
	if err == nil {
		t.Fatal("expected the deadline to kill the command")
	}
}
