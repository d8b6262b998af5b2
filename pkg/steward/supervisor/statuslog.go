// Package supervisor – statuslog.go appends intervention outcomes to a
// plain-text status log, `focus | status | instruction prefix` per
// line, pruned to the most recent entries on overflow.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// focusTable maps keyword hits in the instruction+reply pair to the
// feature area the intervention concerned.
var focusTable = []struct {
	keywords []string
	focus    string
}{
	{[]string{"monitor", "detect", "watch"}, "state monitoring"},
	{[]string{"automation", "click", "input", "keyboard"}, "automation control"},
	{[]string{"analy", "gpt", "llm", " ai "}, "analysis"},
	{[]string{"config", "setting"}, "configuration"},
	{[]string{"log", "record"}, "logging"},
	{[]string{"test", "verify", "validation"}, "testing"},
	{[]string{"deploy", "release", "publish"}, "delivery"},
}

// statusTable maps keyword hits in the observed reply to a coarse task
// status, checked in priority order.
var statusTable = []struct {
	keywords []string
	status   string
}{
	{[]string{"done", "finished", "completed", "complete"}, "completed"},
	{[]string{"error", "failed", "exception", "bug", "crash"}, "blocked"},
	{[]string{"unit test", "integration test", "testing", "verifying"}, "testing"},
	{[]string{"planning", "analyzing", "requirements", "design"}, "planning"},
	{[]string{"refactor", "optimize", "improve"}, "optimizing"},
	{[]string{"implementing", "developing", "coding", "writing"}, "developing"},
}

// StatusLog is the append-only, size-bounded intervention log file.
type StatusLog struct {
	cfg    StatusLogConfig
	logger *slog.Logger
}

// NewStatusLog creates a status log writer. A missing file is created
// on first append.
func NewStatusLog(cfg StatusLogConfig, logger *slog.Logger) *StatusLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusLog{cfg: cfg, logger: logger.With("component", "statuslog")}
}

// Append records one intervention. The focus and status fields are
// derived from the instruction and observed reply via the keyword
// tables; the file is pruned when it grows past the configured cap.
func (l *StatusLog) Append(now time.Time, instruction, reply string) error {
	focus := extractFocus(instruction + " " + reply)
	status := extractStatus(reply)

	line := fmt.Sprintf("[%s] %s | %s | %s",
		now.Format("2006-01-02 15:04:05"),
		focus, status, truncate(instruction, 50))

	existing, err := os.ReadFile(l.cfg.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading status log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(existing), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	lines = append(lines, line)
	if len(lines) > l.cfg.MaxLines {
		lines = lines[len(lines)-l.cfg.KeepLines:]
	}

	if err := os.WriteFile(l.cfg.Path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing status log: %w", err)
	}
	return nil
}

// Prune trims the file to the keep limit without appending. Used by the
// maintenance janitor.
func (l *StatusLog) Prune() error {
	existing, err := os.ReadFile(l.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading status log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(existing), "\n"), "\n")
	if len(lines) <= l.cfg.KeepLines {
		return nil
	}
	lines = lines[len(lines)-l.cfg.KeepLines:]
	if err := os.WriteFile(l.cfg.Path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing status log: %w", err)
	}
	l.logger.Debug("status log pruned", "kept", len(lines))
	return nil
}

func extractFocus(text string) string {
	lower := strings.ToLower(text)
	for _, row := range focusTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.focus
			}
		}
	}
	return "general"
}

func extractStatus(reply string) string {
	lower := strings.ToLower(reply)
	for _, row := range statusTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.status
			}
		}
	}
	return "in progress"
}
