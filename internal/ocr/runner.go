package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderrCap bounds how much stderr is logged and carried in errors.
const stderrCap = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// CommandError carries the trimmed stderr of a failed external command.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	logger.Debug("ocr.exec.start", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		stderr := truncate(strings.TrimSpace(errb.String()), stderrCap)
		logger.Error("ocr.exec.failed", "cmd", name, "duration_ms", elapsed, "error", err, "stderr", stderr)
		return out.Bytes(), errb.Bytes(), &CommandError{Name: name, Stderr: stderr, Err: err}
	}
	logger.Debug("ocr.exec.ok", "cmd", name, "duration_ms", elapsed, "stdout_bytes", out.Len())
	return out.Bytes(), errb.Bytes(), nil
}

// MissingTools returns the external binaries from cfg that cannot be found on PATH.
func MissingTools(cfg Config) []string {
	var missing []string
	for _, bin := range []string{cfg.Tesseract, cfg.Pdftoppm, cfg.Pdftotext} {
		if bin == "" {
			continue
		}
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
