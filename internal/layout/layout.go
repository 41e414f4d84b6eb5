// Package layout computes the scratch directory layout for one build run.
package layout

import (
	"fmt"
	"path/filepath"

	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/pkgspec"
)

// StagingDir returns the directory holding all inputs to the distro's
// packaging tools for one (distro, arch) build: metadata files, init
// scripts and the already-built binaries. An example staging dir is
// dst/x86_64/debian-sysvinit/mongodb-org-unstable-2.7.8. Every component of
// the triple appears in the path, so distinct builds never collide and can
// run concurrently.
func StagingDir(workDir string, p *distro.Profile, arch string, s *pkgspec.Spec) (string, error) {
	pv, err := s.PVersion(p.Family())
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%s-%s", p.PkgBase(), s.Suffix(), pv)
	return filepath.Join(workDir, "dst", arch, p.Name(), name), nil
}
