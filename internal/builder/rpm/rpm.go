// Package rpm builds RPM-family packages: it stages a source tarball and
// spec file into an rpmbuild topdir, works out the macro file list the host
// rpm will honor, and invokes rpmbuild.
package rpm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/archive"
	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/pkgspec"
	"github.com/10gen/distropack/internal/runner"
	"github.com/10gen/distropack/internal/utils"
)

// Builder drives rpmbuild for the RPM-family distros.
type Builder struct {
	Run     *runner.Runner
	WorkDir string
}

// Build packages stagingDir into a source tarball, invokes rpmbuild for
// arch, and collects the produced .rpm files into the distro's repository
// directory.
func (b *Builder) Build(ctx context.Context, p *distro.Profile, arch string, s *pkgspec.Spec, stagingDir string) ([]string, error) {
	suffix := s.Suffix()
	pv, err := s.PVersion(p.Family())
	if err != nil {
		return nil, err
	}
	// RPM version strings cannot contain a dash. PVersion strips them, so
	// tripping this means a bug, not bad input.
	if strings.Contains(pv, "-") {
		return nil, &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("rpm package version %q contains a dash", pv),
		}
	}

	// Per-distro init script substitution, e.g. the SUSE variant.
	if ov := p.InitOverride(); ov != nil {
		replace := filepath.Join(stagingDir, ov.Replace)
		if err := os.Remove(replace); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		if err := os.Link(filepath.Join(stagingDir, ov.With), replace); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		logrus.Infof("using %s for %s", ov.With, p.Name())
	}

	// Each (distro, arch) pair gets its own topdir so concurrent builds
	// never share rpmbuild state.
	topDir := filepath.Join(b.WorkDir, "rpmbuild", fmt.Sprintf("%s-%s", p.Name(), arch))
	for _, sub := range []string{"BUILD", "RPMS", "SOURCES", "SPECS", "SRPMS"} {
		if err := utils.EnsureDir(filepath.Join(topDir, sub)); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	rpmArch, err := p.ArchName(arch)
	if err != nil {
		return nil, err
	}

	flags, err := b.macroFlags(ctx, topDir, rpmArch)
	if err != nil {
		return nil, err
	}

	specName := fmt.Sprintf("mongodb%s.spec", suffix)
	specPath := filepath.Join(topDir, "SPECS", specName)
	if err := utils.CopyFile(filepath.Join(stagingDir, "rpm", specName), specPath); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	// The source tarball is the whole staging tree, named by package and
	// version so the spec's %setup finds it.
	tarName := fmt.Sprintf("%s%s-%s.tar.gz", p.PkgBase(), suffix, pv)
	if err := archive.TarGzDir(stagingDir, filepath.Join(topDir, "SOURCES", tarName)); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	args := []string{"-ba", "--target", rpmArch}
	args = append(args, flags...)
	args = append(args,
		"-D", "dynamic_version "+pv,
		"-D", "dynamic_release "+s.Prelease(),
		specPath,
	)
	if err := b.Run.Run(ctx, b.WorkDir, "rpmbuild", args...); err != nil {
		return nil, &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}

	return b.collect(p, arch, rpmArch, topDir)
}

// macroFlags computes the flags that make rpmbuild load our macro file on
// top of the ones it would load anyway. rpm has no "load one more macro
// file" option, so the stock list is recovered from rpm --showrc, augmented
// and fed back through an rpmrc file. Newer rpm versions dropped the
// macrofiles line from --showrc; for those, fall back to the expression
// known to work on rpm 4.4.
func (b *Builder) macroFlags(ctx context.Context, topDir, rpmArch string) ([]string, error) {
	macroPath := filepath.Join(topDir, "macros")
	if err := os.WriteFile(macroPath, []byte(fmt.Sprintf("%%_topdir\t%s", topDir)), 0644); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	showrc, err := b.Run.Output(ctx, b.WorkDir, "rpm", "--showrc")
	if err != nil {
		return nil, &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}

	if line := macrofilesLine(showrc); line != "" {
		rcPath := filepath.Join(topDir, "rpmrc")
		if err := os.WriteFile(rcPath, []byte(line+":"+macroPath), 0644); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		return []string{"--rpmrc", rcPath}, nil
	}
	return []string{"--macros", fallbackMacroPath(rpmArch, macroPath)}, nil
}

// macrofilesLine returns the "macrofiles" line of rpm --showrc output, or
// "" when this rpm version no longer reports one.
func macrofilesLine(showrc []byte) string {
	for _, line := range strings.Split(string(showrc), "\n") {
		if strings.HasPrefix(line, "macrofiles") {
			return line
		}
	}
	return ""
}

func fallbackMacroPath(rpmArch, macroPath string) string {
	return fmt.Sprintf("/usr/lib/rpm/macros:/usr/lib/rpm/%s-linux/macros:/etc/rpm/macros.*:/etc/rpm/macros:/etc/rpm/%s-linux/macros:~/.rpmmacros:%s",
		rpmArch, rpmArch, macroPath)
}

// collect moves the rpms from the topdir's per-arch output directory into
// the distro's repository directory.
func (b *Builder) collect(p *distro.Profile, arch, rpmArch, topDir string) ([]string, error) {
	relRepo, err := p.RepoDir(arch)
	if err != nil {
		return nil, err
	}
	repoDir := filepath.Join(b.WorkDir, relRepo)
	if err := utils.EnsureDir(repoDir); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	rpms, err := filepath.Glob(filepath.Join(topDir, "RPMS", rpmArch, "*.rpm"))
	if err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	if len(rpms) == 0 {
		return nil, &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("rpmbuild produced no packages under %s/RPMS/%s", topDir, rpmArch),
		}
	}

	var collected []string
	for _, pkg := range rpms {
		if err := Verify(pkg, rpmArch); err != nil {
			return nil, err
		}
		dst := filepath.Join(repoDir, filepath.Base(pkg))
		if err := utils.CopyFile(pkg, dst); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		logrus.Infof("collected %s into %s", filepath.Base(pkg), repoDir)
		collected = append(collected, dst)
	}
	return collected, nil
}
