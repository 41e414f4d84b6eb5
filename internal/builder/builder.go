// Package builder defines the contract the per-family package builders
// implement.
package builder

import (
	"context"

	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/pkgspec"
)

// Backend turns one populated staging directory into package files and
// collects them into the distro's repository directory, returning the
// collected paths.
type Backend interface {
	Build(ctx context.Context, p *distro.Profile, arch string, s *pkgspec.Spec, stagingDir string) ([]string, error)
}
