// Package deb builds Debian-family packages from a populated staging
// directory by generating the debian/ control inputs and handing the tree
// to dpkg-buildpackage.
package deb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/pkgspec"
	"github.com/10gen/distropack/internal/runner"
	"github.com/10gen/distropack/internal/utils"
)

// ChangelogSource reads one metadata file at a revision.
type ChangelogSource interface {
	CatFile(ctx context.Context, rev, path string) ([]byte, error)
}

// Builder drives dpkg-buildpackage for the debianoid distros.
type Builder struct {
	Run     *runner.Runner
	SCM     ChangelogSource
	WorkDir string

	// SigningKey is handed to dpkg-buildpackage as -k; when empty the
	// package is built unsigned.
	SigningKey string
}

// Build generates the debian control inputs in stagingDir, invokes
// dpkg-buildpackage for arch, and collects the produced .deb files into the
// distro's repository directory.
func (b *Builder) Build(ctx context.Context, p *distro.Profile, arch string, s *pkgspec.Spec, stagingDir string) ([]string, error) {
	suffix := s.Suffix()
	debianDir := filepath.Join(stagingDir, "debian")

	// A package ships exactly one service-integration artifact, named
	// after the package; the competing one is dropped. The initscript or
	// upstart job name must match the package name for dh_installinit.
	svc := p.Service()
	if svc == nil {
		return nil, &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("%s is not a debianoid flavor", p.Name()),
		}
	}
	target := filepath.Join(debianDir, fmt.Sprintf("%s%s-server.mongod.%s", p.PkgBase(), suffix, svc.Ext))
	if err := os.Link(filepath.Join(debianDir, svc.Keep), target); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	if err := os.Remove(filepath.Join(debianDir, svc.Drop)); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	raw, err := b.SCM.CatFile(ctx, s.MetadataGitspec(), "debian/changelog")
	if err != nil {
		return nil, err
	}
	changelog, err := RewriteChangelog(raw, s)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(debianDir, "changelog"), changelog, 0644); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	// The suffixed control and rules files move to the fixed names
	// dpkg-buildpackage reads.
	for _, f := range [][2]string{
		{fmt.Sprintf("%s%s.control", p.PkgBase(), suffix), "control"},
		{fmt.Sprintf("%s%s.rules", p.PkgBase(), suffix), "rules"},
	} {
		if err := utils.CopyFile(filepath.Join(debianDir, f[0]), filepath.Join(debianDir, f[1])); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	// Old metadata revisions carried a single-package postinst; it would
	// shadow the per-package ones.
	if err := os.Remove(filepath.Join(debianDir, "postinst")); err != nil && !os.IsNotExist(err) {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	debArch, err := p.ArchName(arch)
	if err != nil {
		return nil, err
	}
	args := []string{"-a" + debArch}
	if b.SigningKey != "" {
		args = append(args, "-k"+b.SigningKey)
	} else {
		args = append(args, "-us", "-uc")
	}
	if err := b.Run.Run(ctx, stagingDir, "dpkg-buildpackage", args...); err != nil {
		return nil, &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}

	return b.collect(p, arch, stagingDir)
}

// collect moves the .deb files dpkg-buildpackage dropped in the staging
// directory's parent into the distro's repository directory.
func (b *Builder) collect(p *distro.Profile, arch, stagingDir string) ([]string, error) {
	relRepo, err := p.RepoDir(arch)
	if err != nil {
		return nil, err
	}
	repoDir := filepath.Join(b.WorkDir, relRepo)
	if err := utils.EnsureDir(repoDir); err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	debs, err := filepath.Glob(filepath.Join(filepath.Dir(stagingDir), "*.deb"))
	if err != nil {
		return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	if len(debs) == 0 {
		return nil, &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("dpkg-buildpackage produced no packages under %s", filepath.Dir(stagingDir)),
		}
	}

	var collected []string
	for _, deb := range debs {
		if err := Verify(deb); err != nil {
			return nil, err
		}
		dst := filepath.Join(repoDir, filepath.Base(deb))
		if err := utils.CopyFile(deb, dst); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		logrus.Infof("collected %s into %s", filepath.Base(deb), repoDir)
		collected = append(collected, dst)
	}
	return collected, nil
}

var (
	versionHeader = regexp.MustCompile(`^mongodb \(.*\)`)
	entryHeader   = regexp.MustCompile(`^mongodb `)
	trailerIndent = regexp.MustCompile(`^  --`)
)

// RewriteChangelog adapts the upstream debian/changelog to the package
// being built: the leading entry gets the computed package version, every
// entry header gets the stability suffix, and overindented trailer lines
// are pulled back in. Everything else is preserved byte for byte; the
// changelog history is an audit artifact.
func RewriteChangelog(raw []byte, s *pkgspec.Spec) ([]byte, error) {
	pv, err := s.PVersion(distro.FamilyDeb)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(raw), "\n")
	// A first line not starting with "mongodb" is a revision preamble and
	// keeps its version untouched.
	if len(lines) > 0 {
		lines[0] = versionHeader.ReplaceAllString(lines[0], fmt.Sprintf("mongodb (%s)", pv))
	}
	for i, line := range lines {
		line = entryHeader.ReplaceAllString(line, fmt.Sprintf("mongodb%s ", s.Suffix()))
		line = trailerIndent.ReplaceAllString(line, " --")
		lines[i] = line
	}
	return []byte(strings.Join(lines, "\n")), nil
}
