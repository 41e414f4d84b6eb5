package distro

import (
	"errors"
	"strings"
	"testing"

	"github.com/10gen/distropack/internal/models"
)

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("slackware")
	var berr *models.BuildError
	if !errors.As(err, &berr) || berr.Type != models.ErrConfig {
		t.Fatalf("Lookup(slackware) error = %v, want a Config BuildError", err)
	}
}

func TestDefaultsAreKnown(t *testing.T) {
	for _, name := range Defaults() {
		if _, err := Lookup(name); err != nil {
			t.Errorf("default distro %q: %v", name, err)
		}
	}
}

func TestArchName(t *testing.T) {
	tests := []struct {
		distro string
		arch   string
		want   string
	}{
		{"debian-sysvinit", "i686", "i386"},
		{"debian-sysvinit", "x86_64", "amd64"},
		{"ubuntu-upstart", "x86_64", "amd64"},
		{"redhat", "i686", "i686"},
		{"redhat", "x86_64", "x86_64"},
		{"suse", "x86_64", "x86_64"},
	}
	for _, tt := range tests {
		p, err := Lookup(tt.distro)
		if err != nil {
			t.Fatal(err)
		}
		got, err := p.ArchName(tt.arch)
		if err != nil {
			t.Fatalf("%s.ArchName(%s) failed: %v", tt.distro, tt.arch, err)
		}
		if got != tt.want {
			t.Errorf("%s.ArchName(%s) = %q, want %q", tt.distro, tt.arch, got, tt.want)
		}
	}
}

func TestArchNameUnknown(t *testing.T) {
	p, _ := Lookup("redhat")
	if _, err := p.ArchName("sparc"); err == nil {
		t.Error("ArchName(sparc) should have failed")
	}
}

func TestRepoDirShapes(t *testing.T) {
	p, _ := Lookup("debian-sysvinit")
	dir, err := p.RepoDir("x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "repo/debian-sysvinit/dists/dist/10gen/binary-amd64" {
		t.Errorf("deb RepoDir = %q", dir)
	}
	if !strings.HasSuffix(dir, "binary-amd64") {
		t.Errorf("deb RepoDir %q should end in binary-amd64", dir)
	}

	p, _ = Lookup("suse")
	dir, err = p.RepoDir("i686")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "repo/suse/os/i686/RPMS" {
		t.Errorf("rpm RepoDir = %q", dir)
	}
}

func TestServiceFileSelection(t *testing.T) {
	sysv, _ := Lookup("debian-sysvinit")
	svc := sysv.Service()
	if svc == nil || svc.Keep != "init.d" || svc.Drop != "mongod.upstart" || svc.Ext != "init" {
		t.Errorf("debian-sysvinit service selection = %+v", svc)
	}

	upstart, _ := Lookup("ubuntu-upstart")
	svc = upstart.Service()
	if svc == nil || svc.Keep != "mongod.upstart" || svc.Drop != "init.d" || svc.Ext != "upstart" {
		t.Errorf("ubuntu-upstart service selection = %+v", svc)
	}

	rh, _ := Lookup("redhat")
	if rh.Service() != nil {
		t.Error("redhat should have no debian service selection")
	}
}

func TestInitOverrideTable(t *testing.T) {
	suse, _ := Lookup("suse")
	ov := suse.InitOverride()
	if ov == nil || ov.Replace != "rpm/init.d-mongod" || ov.With != "rpm/init.d-mongod.suse" {
		t.Errorf("suse init override = %+v", ov)
	}

	rh, _ := Lookup("redhat")
	if rh.InitOverride() != nil {
		t.Error("redhat should use the stock init script")
	}
}

func TestPkgBase(t *testing.T) {
	for _, name := range Names() {
		p, _ := Lookup(name)
		if p.PkgBase() != "mongodb" {
			t.Errorf("%s.PkgBase() = %q", name, p.PkgBase())
		}
	}
}
