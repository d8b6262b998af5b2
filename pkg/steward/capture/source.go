package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Config selects and tunes the snapshot source.
type Config struct {
	// Mode is "exec" (run an OCR helper command per tick) or "file"
	// (read a text file an external OCR process keeps updated).
	Mode string `yaml:"mode"`

	// RegionFile is the JSON region configuration path.
	RegionFile string `yaml:"region_file"`

	// Command is the OCR helper invocation for exec mode. Region
	// geometry is appended as --x/--y/--width/--height arguments for
	// each configured region.
	Command []string `yaml:"command"`

	// TextFile is the snapshot file path for file mode.
	TextFile string `yaml:"text_file"`

	// Timeout bounds one helper invocation (default: 15s).
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the capture defaults.
func DefaultConfig() Config {
	return Config{
		Mode:       "file",
		RegionFile: "regions.json",
		TextFile:   "snapshot.txt",
		Timeout:    15 * time.Second,
	}
}

// ExecSource captures snapshot text by running an external OCR helper
// once per tick. The helper receives the region geometry and writes the
// recognized text to stdout; multiple regions are concatenated in
// region order.
type ExecSource struct {
	command []string
	regions []Region
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecSource creates an exec-backed source for the given regions.
func NewExecSource(cfg Config, regions []Region, logger *slog.Logger) (*ExecSource, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("capture: exec mode requires a command")
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("capture: exec mode requires at least one region")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &ExecSource{
		command: cfg.Command,
		regions: regions,
		timeout: timeout,
		logger:  logger.With("component", "capture"),
	}, nil
}

// CaptureText runs the helper for every region and concatenates the
// output. A helper failure on the primary region fails the capture; a
// failure on a secondary region is logged and skipped.
func (s *ExecSource) CaptureText(ctx context.Context) (string, error) {
	var parts []string
	for i, region := range s.regions {
		text, err := s.captureRegion(ctx, region)
		if err != nil {
			if i == 0 {
				return "", fmt.Errorf("capturing primary region %s: %w", region, err)
			}
			s.logger.Warn("secondary region capture failed", "region", region.String(), "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (s *ExecSource) captureRegion(ctx context.Context, r Region) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append([]string{}, s.command[1:]...)
	args = append(args,
		"--x", strconv.Itoa(r.X),
		"--y", strconv.Itoa(r.Y),
		"--width", strconv.Itoa(r.Width),
		"--height", strconv.Itoa(r.Height),
	)

	cmd := exec.CommandContext(ctx, s.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// FileSource reads the snapshot text from a file an external OCR
// process keeps updated. Suited to headless setups where recognition
// runs out of process.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// CaptureText returns the current file contents. A missing file is a
// capture failure for this tick, not a fatal condition.
func (s *FileSource) CaptureText(context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading snapshot file: %w", err)
	}
	return string(data), nil
}
