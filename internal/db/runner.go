package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes a native dump tool and streams its stdout into w.
type Runner interface {
	Run(ctx context.Context, name string, args []string, w io.Writer) error
}

// LocalRunner runs tools on the local host via os/exec.
type LocalRunner struct {
	// Env entries are appended to the inherited environment, e.g. PGPASSWORD.
	Env []string
}

func (r *LocalRunner) Run(ctx context.Context, name string, args []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("executable file not found: %s", name)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// IsNotFound reports whether err looks like a missing-binary failure from a
// Runner, either locally (ErrNotFound) or via a shell exit status 127.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "status 127")
}
