// Package certbot drives the external certbot binary: argument construction,
// sanitized subprocess execution, output parsing, the async lifecycle
// workflows, and the manual-DNS challenge watcher.
package certbot

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
)

const (
	// DefaultTimeout bounds a single certbot invocation.
	DefaultTimeout = 5 * time.Minute
	// MaxOutputBytes caps combined stdout+stderr capture per invocation.
	MaxOutputBytes = 10 * 1024 * 1024
)

var errOutputLimit = errors.New("output limit exceeded")

// Runner executes the certbot binary. Failure is always encoded in the
// returned result, never in an error value.
type Runner interface {
	Run(ctx context.Context, args ...string) models.CommandResult
}

// ExecRunner invokes certbot as a subprocess with an argument vector.
type ExecRunner struct {
	binPath   string
	timeout   time.Duration
	maxOutput int64
}

// NewExecRunner creates a runner for the certbot binary at binPath.
func NewExecRunner(binPath string, timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{binPath: binPath, timeout: timeout, maxOutput: MaxOutputBytes}
}

// Sanitize strips shell metacharacters from a single argument. Arguments are
// passed to exec as a vector and never through a shell; this is a
// defense-in-depth filter on top of that, not a substitute for it.
func Sanitize(arg string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '&', '|', '`', '$', '(', ')', '{', '}', '[', ']', '<', '>':
			return -1
		}
		return r
	}, arg)
}

// cappedOutput captures stdout and stderr against one shared byte budget.
// exec.Cmd copies the two streams on separate goroutines, so writes are
// serialized with a mutex. Exhausting the budget errors the copy, which
// terminates the subprocess.
type cappedOutput struct {
	mu        sync.Mutex
	remaining int64
	stdout    strings.Builder
	stderr    strings.Builder
}

type cappedWriter struct {
	out *cappedOutput
	buf *strings.Builder
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	w.out.mu.Lock()
	defer w.out.mu.Unlock()

	if w.out.remaining <= 0 {
		return 0, errOutputLimit
	}
	if int64(len(p)) > w.out.remaining {
		p = p[:w.out.remaining]
	}
	w.out.remaining -= int64(len(p))
	return w.buf.Write(p)
}

// Run sanitizes every argument and executes certbot with a wall-clock timeout
// and an output cap. Timeouts and non-zero exits are reported through the
// result's Success flag and ExitCode.
func (r *ExecRunner) Run(ctx context.Context, args ...string) models.CommandResult {
	sanitized := make([]string, len(args))
	for i, arg := range args {
		sanitized[i] = Sanitize(arg)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := &cappedOutput{remaining: r.maxOutput}

	cmd := exec.CommandContext(runCtx, r.binPath, sanitized...)
	cmd.Stdout = &cappedWriter{out: out, buf: &out.stdout}
	cmd.Stderr = &cappedWriter{out: out, buf: &out.stderr}

	slog.Info("executing certbot", "args", strings.Join(sanitized, " "))

	err := cmd.Run()
	result := models.CommandResult{
		Stdout: out.stdout.String(),
		Stderr: out.stderr.String(),
	}

	if err == nil {
		result.Success = true
		slog.Info("certbot command succeeded")
		return result
	}

	result.ExitCode = 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		result.ExitCode = exitErr.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Stderr = appendLine(result.Stderr, "certbot command timed out after "+r.timeout.String())
	}

	slog.Error("certbot command failed", "exit_code", result.ExitCode, "stderr", result.Stderr)
	return result
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
