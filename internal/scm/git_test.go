package scm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/10gen/distropack/internal/runner"
)

// initRepo builds a throwaway repository with a debian/ directory and one
// tagged commit, returning the worktree path.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	git("init", "-q")
	if err := os.MkdirAll(filepath.Join(dir, "debian"), 0755); err != nil {
		t.Fatal(err)
	}
	changelog := "mongodb (2.7.8) unstable; urgency=low\n\n  * release\n\n  -- Packager <p@example.com>  Mon, 01 Jan 2024 00:00:00 +0000\n"
	if err := os.WriteFile(filepath.Join(dir, "debian", "changelog"), []byte(changelog), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("top\n"), 0644); err != nil {
		t.Fatal(err)
	}
	git("add", ".")
	git("commit", "-q", "-m", "import packaging")
	git("tag", "r2.7.8")
	return dir
}

func TestExportTree(t *testing.T) {
	repo := initRepo(t)
	g := &Git{Dir: repo, Run: &runner.Runner{}}

	dst := t.TempDir()
	if err := g.ExportTree(context.Background(), "r2.7.8", "debian", dst); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "debian", "changelog"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("exported changelog is empty")
	}
	// Only the requested path comes across.
	if _, err := os.Stat(filepath.Join(dst, "README")); !os.IsNotExist(err) {
		t.Errorf("README should not be exported, stat err = %v", err)
	}
}

func TestCatFile(t *testing.T) {
	repo := initRepo(t)
	g := &Git{Dir: repo, Run: &runner.Runner{}}

	data, err := g.CatFile(context.Background(), "r2.7.8", "debian/changelog")
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(filepath.Join(repo, "debian", "changelog"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(want) {
		t.Errorf("CatFile = %q, want the committed changelog", data)
	}
}

func TestCatFileUnknownRevision(t *testing.T) {
	repo := initRepo(t)
	g := &Git{Dir: repo, Run: &runner.Runner{}}

	if _, err := g.CatFile(context.Background(), "r9.9.9", "debian/changelog"); err == nil {
		t.Fatal("expected an error for an unknown revision")
	}
}
