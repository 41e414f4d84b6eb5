package deb

import (
	"strings"
	"testing"

	"github.com/10gen/distropack/internal/pkgspec"
)

const sampleChangelog = `mongodb (2.5.0) unstable; urgency=low

  * tracking upstream

  -- Richard Kreuter <richard@10gen.com>  Fri, 09 Aug 2013 10:12:21 -0400

mongodb (2.4.5) unstable; urgency=low

  * tracking upstream

  -- Richard Kreuter <richard@10gen.com>  Mon, 01 Jul 2013 09:00:00 -0400
`

func TestRewriteChangelogHeaders(t *testing.T) {
	s, err := pkgspec.New("2.7.8-rc0", "", 0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RewriteChangelog([]byte(sampleChangelog), s)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(out), "\n")

	if lines[0] != "mongodb-org-unstable (2.7.8~rc0) unstable; urgency=low" {
		t.Errorf("first line = %q", lines[0])
	}
	// Every entry header carries the suffix; only the leading one gets the
	// new version.
	if lines[6] != "mongodb-org-unstable (2.4.5) unstable; urgency=low" {
		t.Errorf("second header = %q", lines[6])
	}
}

func TestRewriteChangelogPreservesBody(t *testing.T) {
	s, err := pkgspec.New("2.6.4", "", 0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RewriteChangelog([]byte(sampleChangelog), s)
	if err != nil {
		t.Fatal(err)
	}

	inLines := strings.Split(sampleChangelog, "\n")
	outLines := strings.Split(string(out), "\n")
	if len(inLines) != len(outLines) {
		t.Fatalf("line count changed: %d -> %d", len(inLines), len(outLines))
	}

	for i := range inLines {
		switch {
		case strings.HasPrefix(inLines[i], "mongodb "):
			if !strings.HasPrefix(outLines[i], "mongodb-org ") {
				t.Errorf("line %d header not rewritten: %q", i, outLines[i])
			}
		case strings.HasPrefix(inLines[i], "  --"):
			// Trailer lines are unindented by one space.
			if outLines[i] != inLines[i][1:] {
				t.Errorf("line %d trailer = %q, want %q", i, outLines[i], inLines[i][1:])
			}
		default:
			if outLines[i] != inLines[i] {
				t.Errorf("line %d changed: %q -> %q", i, inLines[i], outLines[i])
			}
		}
	}
}

// A revision preamble before the first entry keeps its content; only lines
// starting with the package name are touched.
func TestRewriteChangelogPreamble(t *testing.T) {
	s, err := pkgspec.New("2.6.4", "", 0)
	if err != nil {
		t.Fatal(err)
	}

	in := "some preamble line\n" + sampleChangelog
	out, err := RewriteChangelog([]byte(in), s)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(out), "\n")
	if lines[0] != "some preamble line" {
		t.Errorf("preamble changed: %q", lines[0])
	}
	// The version rewrite only ever touches the first line, so the entry
	// keeps its own version here.
	if !strings.HasPrefix(lines[1], "mongodb-org (2.5.0)") {
		t.Errorf("first entry header = %q", lines[1])
	}
}
