// Package scm reads packaging metadata out of the source-control history.
// The contract is "export the tree at revision R restricted to path P",
// which maps onto git archive and git show.
package scm

import (
	"bytes"
	"context"

	"github.com/10gen/distropack/internal/archive"
	"github.com/10gen/distropack/internal/runner"
)

// Git exports trees and files from a local repository.
type Git struct {
	Dir string // repository root
	Run *runner.Runner
}

// ExportTree extracts path at rev into dstDir, preserving the path's
// position in the tree (exporting "debian" creates dstDir/debian/...).
func (g *Git) ExportTree(ctx context.Context, rev, path, dstDir string) error {
	out, err := g.Run.Output(ctx, g.Dir, "git", "archive", rev, path)
	if err != nil {
		return err
	}
	return archive.Untar(bytes.NewReader(out), dstDir)
}

// CatFile returns the contents of one file at rev.
func (g *Git) CatFile(ctx context.Context, rev, path string) ([]byte, error) {
	return g.Run.Output(ctx, g.Dir, "git", "show", rev+":"+path)
}
