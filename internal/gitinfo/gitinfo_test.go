package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func gitOrSkip(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@localhost",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@localhost",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHeadSHA(t *testing.T) {
	gitOrSkip(t)
	dir := t.TempDir()
	run(t, dir, "init", "-q")
	write(t, dir, "a.go", "package a\n")
	run(t, dir, "add", ".")
	run(t, dir, "commit", "-q", "-m", "initial")

	sha, err := HeadSHA(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(sha) != 40 {
		t.Fatalf("expected 40-char SHA, got %q", sha)
	}
}

func TestHeadSHANotARepository(t *testing.T) {
	gitOrSkip(t)
	sha, err := HeadSHA(t.TempDir())
	if err != nil {
		t.Fatalf("non-repo must not error, got %v", err)
	}
	if sha != "" {
		t.Fatalf("expected empty SHA for non-repo, got %q", sha)
	}
}

func TestChangedFiles(t *testing.T) {
	gitOrSkip(t)
	dir := t.TempDir()
	run(t, dir, "init", "-q")
	write(t, dir, "kept.go", "package a\n")
	write(t, dir, "gone.go", "package a\n")
	run(t, dir, "add", ".")
	run(t, dir, "commit", "-q", "-m", "initial")
	base := run(t, dir, "rev-parse", "HEAD")

	write(t, dir, "kept.go", "package a\n\nvar X = 1\n")
	write(t, dir, "new.go", "package a\n")
	if err := os.Remove(filepath.Join(dir, "gone.go")); err != nil {
		t.Fatal(err)
	}
	run(t, dir, "add", "-A")
	run(t, dir, "commit", "-q", "-m", "second")

	ch, err := ChangedFiles(dir, base)
	if err != nil {
		t.Fatal(err)
	}

	wantModified := map[string]bool{"kept.go": true, "new.go": true}
	if len(ch.Modified) != 2 || !wantModified[ch.Modified[0]] || !wantModified[ch.Modified[1]] {
		t.Fatalf("modified = %v, want kept.go and new.go", ch.Modified)
	}
	if len(ch.Deleted) != 1 || ch.Deleted[0] != "gone.go" {
		t.Fatalf("deleted = %v, want [gone.go]", ch.Deleted)
	}
}
