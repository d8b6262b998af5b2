// Package actuate delivers generated instructions to the monitored
// surface. The core never knows how an instruction lands — typed into
// an input box, piped to a tool, or just logged — it only sees the
// Executor boundary.
package actuate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Config selects and tunes the instruction executor.
type Config struct {
	// Mode is "exec" (run a delivery command) or "log" (dry run).
	Mode string `yaml:"mode"`

	// Command is the delivery invocation for exec mode. The literal
	// argument "{instruction}" is replaced with the instruction text;
	// without a placeholder the instruction is piped to stdin.
	Command []string `yaml:"command"`

	// Timeout bounds one delivery (default: 30s).
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the actuation defaults.
func DefaultConfig() Config {
	return Config{
		Mode:    "log",
		Timeout: 30 * time.Second,
	}
}

const instructionPlaceholder = "{instruction}"

// ExecExecutor delivers instructions by running a configured command,
// typically an input-automation bridge (xdotool, osascript, a helper
// script for the target application).
type ExecExecutor struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecExecutor creates an exec-backed executor.
func NewExecExecutor(cfg Config, logger *slog.Logger) (*ExecExecutor, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("actuate: exec mode requires a command")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &ExecExecutor{
		command: cfg.Command,
		timeout: timeout,
		logger:  logger.With("component", "actuate"),
	}, nil
}

// Dispatch runs the delivery command for one instruction.
func (e *ExecExecutor) Dispatch(ctx context.Context, instruction string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := make([]string, 0, len(e.command)-1)
	substituted := false
	for _, a := range e.command[1:] {
		if strings.Contains(a, instructionPlaceholder) {
			a = strings.ReplaceAll(a, instructionPlaceholder, instruction)
			substituted = true
		}
		args = append(args, a)
	}

	cmd := exec.CommandContext(ctx, e.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if !substituted {
		cmd.Stdin = strings.NewReader(instruction)
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("delivery command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("delivery command failed: %w", err)
	}

	e.logger.Debug("instruction delivered", "bytes", len(instruction))
	return nil
}

// LogExecutor records instructions without delivering them. Used for
// dry runs and the simulate command.
type LogExecutor struct {
	logger *slog.Logger
}

// NewLogExecutor creates a log-only executor.
func NewLogExecutor(logger *slog.Logger) *LogExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExecutor{logger: logger.With("component", "actuate")}
}

// Dispatch logs the instruction and reports success.
func (e *LogExecutor) Dispatch(_ context.Context, instruction string) error {
	e.logger.Info("dry-run instruction", "instruction", instruction)
	return nil
}
