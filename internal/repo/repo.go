// Package repo regenerates distro-native repository indexes over freshly
// built packages and promotes finished repository trees into place.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/runner"
	"github.com/10gen/distropack/internal/signer"
	"github.com/10gen/distropack/internal/utils"
)

// Publisher regenerates repository indexes under WorkDir/repo/<distro>.
type Publisher struct {
	Run     *runner.Runner
	WorkDir string

	// Signer signs the deb Release file in process; when nil the external
	// gpg binary is used with its default discoverable identity.
	Signer signer.Signer

	// Index regeneration rewrites family-wide metadata, so concurrent
	// builds of the same family must not interleave here.
	mu sync.Mutex
}

// MakeRepo regenerates the native index for the family that owns the
// distro's repository directory.
func (pub *Publisher) MakeRepo(ctx context.Context, p *distro.Profile, arch string) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	switch p.Family() {
	case distro.FamilyDeb:
		return pub.debRepo(ctx, p)
	case distro.FamilyRPM:
		return pub.rpmRepo(ctx, p, arch)
	default:
		return &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("unsupported package family %v", p.Family()),
		}
	}
}

// debRepo rebuilds the Packages index of every directory holding .deb files
// under the distro's repository root, then writes one signed Release file
// over the lot. The Packages files must all exist before Release is
// computed, so the passes are strictly ordered.
func (pub *Publisher) debRepo(ctx context.Context, p *distro.Profile) error {
	root := filepath.Join(pub.WorkDir, "repo", p.Name())

	dirs, err := debDirs(root)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	for _, dir := range dirs {
		// dpkg-scanpackages emits Filename: fields relative to its
		// working directory, so it runs from the repository root with a
		// relative path. The apt layout requires exactly that shape.
		out, err := pub.Run.Output(ctx, root, "dpkg-scanpackages", dir, "/dev/null")
		if err != nil {
			return &models.BuildError{Type: models.ErrExternalTool, Err: err}
		}
		if err := utils.WriteFile(filepath.Join(root, dir, "Packages"), out, 0644); err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		gz, err := utils.GzipCompress(out)
		if err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		if err := utils.WriteFile(filepath.Join(root, dir, "Packages.gz"), gz, 0644); err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		logrus.Infof("indexed %s", filepath.Join(root, dir))
	}

	return pub.debRelease(ctx, p, root)
}

// debDirs returns the directories under root containing at least one .deb,
// relative to root.
func debDirs(root string) ([]string, error) {
	seen := map[string]bool{}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".deb") {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		if !seen[rel] {
			seen[rel] = true
			dirs = append(dirs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// debRelease writes the signed release metadata at dists/<codename>: a
// fixed preamble describing the repository plus the checksum body from
// apt-ftparchive, replaced atomically, with a detached signature beside it.
func (pub *Publisher) debRelease(ctx context.Context, p *distro.Profile, root string) error {
	distsDir := filepath.Join(root, "dists", p.Codename())

	var buf bytes.Buffer
	buf.Write(releasePreamble(p))

	body, err := pub.Run.Output(ctx, distsDir, "apt-ftparchive", "release", ".")
	if err != nil {
		return &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}
	buf.Write(body)

	if err := utils.ReplaceFile(filepath.Join(distsDir, "Release"), buf.Bytes(), 0644); err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	if pub.Signer != nil {
		sig, err := pub.Signer.SignDetached(buf.Bytes())
		if err != nil {
			return &models.BuildError{Type: models.ErrExternalTool, Err: err}
		}
		if err := utils.ReplaceFile(filepath.Join(distsDir, "Release.gpg"), sig, 0644); err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		return nil
	}
	return pub.signExternal(ctx, distsDir)
}

// releasePreamble renders the fixed descriptive fields that precede the
// apt-ftparchive checksum body in the Release file. Field order and the
// leading blank line are part of the published format.
func releasePreamble(p *distro.Profile) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\nOrigin: %s\n", p.PkgBase())
	fmt.Fprintf(&buf, "Label: %s\n", p.PkgBase())
	fmt.Fprintf(&buf, "Suite: %s\n", p.PkgBase())
	fmt.Fprintf(&buf, "Codename: %s\n", p.Codename())
	fmt.Fprintf(&buf, "Version: %s\n", p.Codename())
	fmt.Fprintf(&buf, "Architectures: i386 amd64\n")
	fmt.Fprintf(&buf, "Components: %s\n", p.PkgBase())
	fmt.Fprintf(&buf, "Description: %s packages\n", p.PkgBase())
	return buf.Bytes()
}

// signExternal produces Release.gpg with the gpg binary, signing as the
// first uid the default keyring reports.
func (pub *Publisher) signExternal(ctx context.Context, dir string) error {
	keys, err := pub.Run.Output(ctx, dir, "gpg", "--list-keys")
	if err != nil {
		return &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}
	uid := firstUID(keys)
	if uid == "" {
		return &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("no uid in gpg --list-keys output; is the signing keyring installed?"),
		}
	}

	if err := os.Remove(filepath.Join(dir, "Release.gpg")); err != nil && !os.IsNotExist(err) {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	err = pub.Run.Run(ctx, dir, "gpg",
		"-r", uid, "--no-secmem-warning", "-abs", "--output", "Release.gpg", "Release")
	if err != nil {
		return &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}
	return nil
}

// firstUID extracts the signing identity from gpg --list-keys output: the
// last token of the first uid line.
func firstUID(listing []byte) string {
	for _, line := range strings.Split(string(listing), "\n") {
		tokens := strings.Fields(line)
		if len(tokens) > 0 && tokens[0] == "uid" {
			return tokens[len(tokens)-1]
		}
	}
	return ""
}

// rpmRepo regenerates the repodata index in place over the distro's
// per-arch repository directory.
func (pub *Publisher) rpmRepo(ctx context.Context, p *distro.Profile, arch string) error {
	relRepo, err := p.RepoDir(arch)
	if err != nil {
		return err
	}
	// createrepo runs over the parent of RPMS so repodata/ lands beside it.
	dir := filepath.Dir(filepath.Join(pub.WorkDir, relRepo))
	if err := pub.Run.Run(ctx, dir, "createrepo", "."); err != nil {
		return &models.BuildError{Type: models.ErrExternalTool, Err: err}
	}
	return nil
}
