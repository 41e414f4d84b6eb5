// Package pkgspec resolves a raw server version plus optional overrides into
// the version strings, release numbers and metadata revision the packaging
// toolchains need. Everything here is a pure computation; the derived values
// are never cached or mutated.
package pkgspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/models"
)

var (
	rcTail = regexp.MustCompile(`-rc\d+$`)
)

// Spec describes one version being packaged.
type Spec struct {
	version string
	gitspec string
	rel     int
	minor   int

	// now is the clock Prelease stamps nightlies with; tests override it.
	now func() time.Time
}

// New validates version and builds a Spec. gitspec and rel are optional
// overrides; empty and zero select the defaults.
func New(version, gitspec string, rel int) (*Spec, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return nil, &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("version %q has no minor component", version),
		}
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("version %q: minor component is not a number", version),
		}
	}
	return &Spec{
		version: version,
		gitspec: gitspec,
		rel:     rel,
		minor:   minor,
		now:     time.Now,
	}, nil
}

// Version returns the raw upstream version string.
func (s *Spec) Version() string {
	return s.version
}

// MetadataGitspec returns the git revision to use for spec, control, init
// and manpage files. The default is the release tag for the version being
// packaged.
func (s *Spec) MetadataGitspec() string {
	if s.gitspec != "" {
		return s.gitspec
	}
	return "r" + s.version
}

// Suffix returns the package name suffix. Even minor versions are the
// stable series ("-org"), odd ones the development series ("-org-unstable").
func (s *Spec) Suffix() string {
	if s.minor%2 == 0 {
		return "-org"
	}
	return "-org-unstable"
}

// Prelease formats the package release number according to the kind of
// version being packaged:
//
//	standard release:     "N"
//	release candidate:    "0.N.rcX"
//	nightly (trailing -): "0.N.YYYYMMDD"
//
// where N is the release number base, default 1. The rc check runs before
// the nightly check; a malformed version could match both and the rc
// interpretation wins.
func (s *Spec) Prelease() string {
	core := 1
	if s.rel > 0 {
		core = s.rel
	}
	switch {
	case rcTail.MatchString(s.version):
		tail := s.version[strings.LastIndex(s.version, "-")+1:]
		return fmt.Sprintf("0.%d.%s", core, tail)
	case strings.HasSuffix(s.version, "-"):
		return fmt.Sprintf("0.%d.%s", core, s.now().Format("20060102"))
	default:
		return strconv.Itoa(core)
	}
}

// PVersion returns the package version string for a family. Debian has
// strict ordering rules around dashes, so they become tildes; RPM forbids
// dashes outright, so everything from the first dash on is dropped.
func (s *Spec) PVersion(f distro.Family) (string, error) {
	switch f {
	case distro.FamilyDeb:
		return strings.ReplaceAll(s.version, "-", "~"), nil
	case distro.FamilyRPM:
		if i := strings.Index(s.version, "-"); i >= 0 {
			return s.version[:i], nil
		}
		return s.version, nil
	default:
		return "", &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("unsupported package family %v", f),
		}
	}
}
