package rpm

import (
	"strings"
	"testing"
)

const showrcWithMacrofiles = `ARCHITECTURE AND OS:
build arch            : x86_64
macrofiles            : /usr/lib/rpm/macros:/etc/rpm/macros:~/.rpmmacros
install arch          : x86_64
`

const showrcWithout = `ARCHITECTURE AND OS:
build arch            : x86_64
install arch          : x86_64
`

func TestMacrofilesLine(t *testing.T) {
	got := macrofilesLine([]byte(showrcWithMacrofiles))
	want := "macrofiles            : /usr/lib/rpm/macros:/etc/rpm/macros:~/.rpmmacros"
	if got != want {
		t.Errorf("macrofilesLine = %q, want %q", got, want)
	}

	if got := macrofilesLine([]byte(showrcWithout)); got != "" {
		t.Errorf("macrofilesLine on newer rpm output = %q, want empty", got)
	}
}

func TestFallbackMacroPath(t *testing.T) {
	got := fallbackMacroPath("x86_64", "/work/rpmbuild/redhat-x86_64/macros")
	if !strings.HasPrefix(got, "/usr/lib/rpm/macros:/usr/lib/rpm/x86_64-linux/macros:") {
		t.Errorf("fallback path = %q", got)
	}
	if !strings.HasSuffix(got, ":/work/rpmbuild/redhat-x86_64/macros") {
		t.Errorf("fallback path should end with our macro file: %q", got)
	}
	if !strings.Contains(got, "~/.rpmmacros") {
		t.Errorf("fallback path should include the user macros: %q", got)
	}
}
