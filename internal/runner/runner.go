// Package runner invokes external tools. Every invocation names its working
// directory explicitly instead of relying on the process cwd, so builds for
// different (distro, arch) pairs can run side by side.
package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/models"
)

// Runner runs external tools with a per-invocation deadline.
type Runner struct {
	// Timeout bounds each invocation; zero means no deadline.
	Timeout time.Duration
}

// Run executes the command in dir, streaming its stdout. A nonzero exit
// comes back as an ExternalToolError carrying dir, argv and stderr.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	_, err := r.run(ctx, dir, false, name, args...)
	return err
}

// Output executes the command in dir and returns its stdout.
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return r.run(ctx, dir, true, name, args...)
}

func (r *Runner) run(ctx context.Context, dir string, capture bool, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logrus.Infof("in %s, running %s %s", dir, name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	if capture {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		return nil, &models.ExternalToolError{
			Dir:    dir,
			Args:   append([]string{name}, args...),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}
