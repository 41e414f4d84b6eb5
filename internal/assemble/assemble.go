// Package assemble populates staging directories: the metadata files at the
// right revision, plus the prebuilt binaries, arranged the way the backend
// builders expect them.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/archive"
	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/pkgspec"
	"github.com/10gen/distropack/internal/utils"
)

// BinaryDir is the staging subdirectory the binaries are splatted under.
// The build stages of the packaging metadata move them to their final
// locations.
const BinaryDir = "BINARIES"

// Exporter provides "tree at revision, restricted to a path" access to the
// packaging metadata repository.
type Exporter interface {
	ExportTree(ctx context.Context, rev, path, dstDir string) error
}

// Assembler fills staging directories for backend builders.
type Assembler struct {
	SCM     Exporter
	Product string // archive wrapper prefix, e.g. "mongodb-linux"

	// Excludes lists binaries removed from the unpacked set. Historically
	// just mongosniff, whose libpcap linkage cannot be redistributed.
	Excludes []string
}

// Populate fills stagingDir with the packaging metadata at the spec's
// metadata revision and the binaries unpacked from tarball. On error the
// partially populated directory is left in place for postmortem inspection.
func (a *Assembler) Populate(ctx context.Context, stagingDir, tarball, arch string, s *pkgspec.Spec) error {
	if err := utils.EnsureDir(stagingDir); err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	// The RPM packages get their man pages from the debian directory, so
	// both metadata trees are exported regardless of family.
	for _, dir := range []string{"debian", "rpm"} {
		logrus.Infof("copying packaging files %s@%s into %s", dir, s.MetadataGitspec(), stagingDir)
		if err := a.SCM.ExportTree(ctx, s.MetadataGitspec(), dir, stagingDir); err != nil {
			return err
		}
	}

	binDir := filepath.Join(stagingDir, BinaryDir, "usr", "bin")
	subtree := fmt.Sprintf("%s-%s-%s/bin", a.Product, arch, s.Version())
	logrus.Infof("unpacking %s from %s", subtree, tarball)
	if err := archive.ExtractSubtree(tarball, subtree, binDir); err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	for _, name := range a.Excludes {
		p := filepath.Join(binDir, name)
		switch err := os.Remove(p); {
		case err == nil:
			logrus.Infof("excluded %s from the package", name)
		case !os.IsNotExist(err):
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}
	return nil
}
