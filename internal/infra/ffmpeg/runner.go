package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// DiagnosticTailBytes bounds how much tool stderr is kept for logs.
const DiagnosticTailBytes = 500

var (
	ErrToolNotFound = errors.New("ffmpeg: executable not found")
	ErrTimeout      = errors.New("ffmpeg: timed out")
	ErrNoOutput     = errors.New("ffmpeg: no output written")
	ErrNoFrames     = errors.New("ffmpeg: no frames to compile")
)

// ExitError reports a tool run that finished with a nonzero status.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", strings.Join(e.Args, " "), e.Code, e.Stderr)
}

// Tail returns at most the last n bytes of s.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[len(s)-n:], "")
}

type runner struct {
	path string
}

func (r runner) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, r.path)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, Tail(stderr.String(), DiagnosticTailBytes))
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("run %s: %w", r.path, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ExitError{
			Args:   append([]string{r.path}, args...),
			Code:   exitErr.ExitCode(),
			Stderr: Tail(stderr.String(), DiagnosticTailBytes),
		}
	}
	return nil, fmt.Errorf("run %s: %w", r.path, err)
}
