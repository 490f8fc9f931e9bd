// ABOUTME: Tests for shared utility functions used by CLI commands
// ABOUTME: Verifies truncation, time and score formatting, and output rendering

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"very short maxLen", "hello", 2, "he"},
		{"multibyte runes", "Ñandú rosado", 8, "Ñandú..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	old := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"seconds", now.Add(-10 * time.Second), "10 seconds ago"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"days", now.Add(-2 * 24 * time.Hour), "2 days ago"},
		{"old", old, old.Format("2006-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(0.91234, true); got != "0.912" {
		t.Errorf("formatScore = %q", got)
	}
	if got := formatScore(math.Inf(-1), false); got != "-" {
		t.Errorf("formatScore for no match = %q, want -", got)
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := validatePositiveInt(1, "n"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, n := range []int{0, -3} {
		if err := validatePositiveInt(n, "n"); err == nil {
			t.Errorf("expected error for %d", n)
		}
	}
}

func TestWriteOutput(t *testing.T) {
	original := outputFormat
	defer func() { outputFormat = original }()

	value := map[string]int{"entries": 3}
	table := func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "ENTRIES\t%d\n", value["entries"])
	}

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{formatAuto, func(t *testing.T, out string) {
			if !strings.HasPrefix(out, "ENTRIES") {
				t.Errorf("auto on a buffer should render the table, got %q", out)
			}
		}},
		{formatTable, func(t *testing.T, out string) {
			if !strings.Contains(out, "ENTRIES  3") {
				t.Errorf("unexpected table %q", out)
			}
		}},
		{formatJSON, func(t *testing.T, out string) {
			var got map[string]int
			if err := json.Unmarshal([]byte(out), &got); err != nil || got["entries"] != 3 {
				t.Errorf("unexpected JSON %q (%v)", out, err)
			}
		}},
		{formatYAML, func(t *testing.T, out string) {
			var got map[string]int
			if err := yaml.Unmarshal([]byte(out), &got); err != nil || got["entries"] != 3 {
				t.Errorf("unexpected YAML %q (%v)", out, err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			outputFormat = tt.format
			cmd := &cobra.Command{}
			var buf bytes.Buffer
			cmd.SetOut(&buf)

			if err := writeOutput(cmd, value, table); err != nil {
				t.Fatalf("writeOutput: %v", err)
			}
			tt.check(t, buf.String())
		})
	}
}
