package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerOptions{Message: "scanning", NoColor: true, Interval: 10 * time.Millisecond})

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "scanning") {
		t.Errorf("expected spinner output to contain message, got %q", buf.String())
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerOptions{Message: "idle", NoColor: true})
	s.Stop() // must not block or panic
}

func TestSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerOptions{Message: "scanning", NoColor: true, Interval: 10 * time.Millisecond})
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Success("2 repositories synchronized")

	if !strings.Contains(buf.String(), "✓ 2 repositories synchronized") {
		t.Errorf("expected success line, got %q", buf.String())
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerOptions{Message: "first", NoColor: true, Interval: 5 * time.Millisecond})
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.UpdateMessage("second")
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "second") {
		t.Errorf("expected updated message in output, got %q", buf.String())
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"REPOSITORY", "STATUS", "TYPES"}, &TableOptions{NoColor: true})
	table.AddRow("payments-api", "success", "14")
	table.AddRow("billing", "failed: no git head", "0")
	table.Render()

	out := buf.String()
	for _, want := range []string{"REPOSITORY", "payments-api", "failed: no git head", "─"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	// Columns align: every row is at least as wide as the longest cell.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header, rule, 2 rows), got %d", len(lines))
	}
}

func TestTableEmptyHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, nil, nil)
	table.AddRow("ignored")
	table.Render()
	if buf.Len() != 0 {
		t.Errorf("expected no output without headers, got %q", buf.String())
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"full", "full", 0},
		{"ful", "full", 1},
		{"incremental", "incrmental", 1},
		{"integrity", "integirty", 2},
		{"abc", "", 3},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFindBestMatch(t *testing.T) {
	scanTypes := []string{"full", "incremental", "integrity"}

	if got := FindBestMatch("incrmental", scanTypes, nil); got != "incremental" {
		t.Errorf("expected 'incremental', got %q", got)
	}
	if got := FindBestMatch("FULL", scanTypes, nil); got != "full" {
		t.Errorf("expected case-insensitive match 'full', got %q", got)
	}
	if got := FindBestMatch("completely-different", scanTypes, nil); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}

func TestFindSimilarOrdering(t *testing.T) {
	got := FindSimilar("user", []string{"users", "orders", "user_events", "usr"}, nil)
	if len(got) == 0 || got[0] != "usr" && got[0] != "users" {
		t.Fatalf("expected closest candidates first, got %v", got)
	}
	for _, item := range got {
		if item == "orders" {
			t.Error("'orders' is too far from 'user' to be suggested")
		}
	}
}
