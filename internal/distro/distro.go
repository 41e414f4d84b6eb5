// Package distro holds the per-distribution policy tables: which packaging
// family a distro belongs to, how it names architectures, where its finished
// packages go, and the per-distro quirks the backend builders honor.
package distro

import (
	"fmt"
	"sort"

	"github.com/10gen/distropack/internal/models"
)

// Family is the packaging backend a distro uses. It is a closed set; any
// switch over it carries a default returning a config error so an unknown
// value can never silently build the wrong thing.
type Family int

const (
	FamilyDeb Family = iota
	FamilyRPM
)

// String returns the string representation of Family
func (f Family) String() string {
	switch f {
	case FamilyDeb:
		return "deb"
	case FamilyRPM:
		return "rpm"
	default:
		return "unknown"
	}
}

// DefaultArches are the canonical architecture tokens we build for.
var DefaultArches = []string{"i686", "x86_64"}

// ServiceFiles names the service-supervision integration inside the exported
// debian/ metadata tree. A debianoid package ships exactly one of these,
// renamed after the package; the competing file is dropped.
type ServiceFiles struct {
	Keep string // metadata file to rename into place
	Drop string // the other integration file, removed
	Ext  string // final name extension ("init" or "upstart")
}

// InitOverride swaps an alternate init script into place before an RPM
// build. Keyed per distro so the next quirk is one table row, not a branch.
type InitOverride struct {
	Replace string // path under the staging dir to replace
	With    string // path under the staging dir holding the substitute
}

// Profile is the policy bundle for one distribution flavor.
type Profile struct {
	name      string
	family    Family
	pkgBase   string
	codename  string // deb repo codename
	component string // deb repo component
	service   *ServiceFiles
	initOver  *InitOverride
}

var archNames = map[Family]map[string]string{
	FamilyDeb: {"i686": "i386", "x86_64": "amd64"},
	FamilyRPM: {"i686": "i686", "x86_64": "x86_64"},
}

var profiles = map[string]*Profile{
	"debian-sysvinit": {
		name:      "debian-sysvinit",
		family:    FamilyDeb,
		codename:  "dist",
		component: "10gen",
		service:   &ServiceFiles{Keep: "init.d", Drop: "mongod.upstart", Ext: "init"},
	},
	"ubuntu-upstart": {
		name:      "ubuntu-upstart",
		family:    FamilyDeb,
		codename:  "dist",
		component: "10gen",
		service:   &ServiceFiles{Keep: "mongod.upstart", Drop: "init.d", Ext: "upstart"},
	},
	"redhat": {
		name:   "redhat",
		family: FamilyRPM,
	},
	"fedora": {
		name:   "fedora",
		family: FamilyRPM,
	},
	"centos": {
		name:   "centos",
		family: FamilyRPM,
	},
	"suse": {
		name:   "suse",
		family: FamilyRPM,
		initOver: &InitOverride{
			Replace: "rpm/init.d-mongod",
			With:    "rpm/init.d-mongod.suse",
		},
	},
}

// Defaults is the distro set built when none are selected.
func Defaults() []string {
	return []string{"suse", "debian-sysvinit", "ubuntu-upstart", "redhat"}
}

// Names returns every known distro flavor, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a distro flavor name to its profile.
func Lookup(name string) (*Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("unknown distro %q (known: %v)", name, Names()),
		}
	}
	return p, nil
}

// Name returns the distro flavor name, e.g. "debian-sysvinit".
func (p *Profile) Name() string {
	return p.name
}

// Family returns the packaging backend for this distro.
func (p *Profile) Family() Family {
	return p.family
}

// PkgBase is the first part of the package name on this distro. Pre-2.5.3
// it differed between families ("mongo" on redhat); it is a profile field
// so that can come back without touching call sites.
func (p *Profile) PkgBase() string {
	if p.pkgBase != "" {
		return p.pkgBase
	}
	return "mongodb"
}

// Service returns the service-integration file selection for debianoids,
// nil for RPM-family distros.
func (p *Profile) Service() *ServiceFiles {
	return p.service
}

// InitOverride returns the per-distro init script substitution applied
// before an RPM build, nil when the stock script is used.
func (p *Profile) InitOverride() *InitOverride {
	return p.initOver
}

// ArchName maps a canonical architecture token to this distro's own naming.
func (p *Profile) ArchName(arch string) (string, error) {
	name, ok := archNames[p.family][arch]
	if !ok {
		return "", &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("unknown architecture %q for %s", arch, p.name),
		}
	}
	return name, nil
}

// RepoDir returns the relative directory where finished packages are placed
// for indexing, in the distro's native repository layout. The shapes are a
// hard contract with apt and yum clients and must not change.
func (p *Profile) RepoDir(arch string) (string, error) {
	archName, err := p.ArchName(arch)
	if err != nil {
		return "", err
	}
	switch p.family {
	case FamilyDeb:
		return fmt.Sprintf("repo/%s/dists/%s/%s/binary-%s", p.name, p.codename, p.component, archName), nil
	case FamilyRPM:
		return fmt.Sprintf("repo/%s/os/%s/RPMS", p.name, archName), nil
	default:
		return "", &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("unsupported package family %v", p.family),
		}
	}
}

// Codename is the deb repository codename ("dist" historically).
func (p *Profile) Codename() string {
	return p.codename
}

// Component is the deb repository component ("10gen" historically).
func (p *Profile) Component() string {
	return p.component
}
