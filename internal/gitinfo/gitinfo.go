// Package gitinfo extracts provenance information from a repository's git
// metadata by shelling out to git, so scans can stamp every extracted fact
// with the commit it was observed at and incremental runs can diff against
// the last synchronized commit.
package gitinfo

import (
	"fmt"
	"os/exec"
	"strings"
)

// HeadSHA returns the full SHA of the repository's HEAD commit. A directory
// that is not a git repository yields an empty SHA and no error: provenance
// then records the scan without a commit pin.
func HeadSHA(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// Changes holds the file-level delta between two commits.
type Changes struct {
	Modified []string // added or modified paths, relative to the repo root
	Deleted  []string
}

// ChangedFiles returns the files touched between sinceSHA and HEAD using
// `git diff --name-status`. Renames count as a deletion plus a modification.
func ChangedFiles(dir, sinceSHA string) (Changes, error) {
	cmd := exec.Command("git", "diff", "--name-status", "-M", sinceSHA, "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return Changes{}, fmt.Errorf("git diff since %s: %w", shortSHA(sinceSHA), err)
	}

	var ch Changes
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]
		switch {
		case status == "D":
			ch.Deleted = append(ch.Deleted, parts[1])
		case strings.HasPrefix(status, "R") && len(parts) >= 3:
			ch.Deleted = append(ch.Deleted, parts[1])
			ch.Modified = append(ch.Modified, parts[2])
		default:
			ch.Modified = append(ch.Modified, parts[1])
		}
	}
	return ch, nil
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
