package deb

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blakesmith/ar"

	"github.com/10gen/distropack/internal/models"
)

// Verify checks that path is a well-formed Debian package before it is
// collected into a repository: an ar archive whose first member is the
// debian-binary version marker.
func Verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	defer f.Close()

	r := ar.NewReader(f)
	header, err := r.Next()
	if err != nil {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s is not an ar archive: %w", path, err),
		}
	}
	if strings.TrimSpace(header.Name) != "debian-binary" {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s: first ar member is %q, not debian-binary", path, header.Name),
		}
	}

	version, err := io.ReadAll(r)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	if !strings.HasPrefix(string(version), "2.") {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s: unsupported deb format version %q", path, strings.TrimSpace(string(version))),
		}
	}
	return nil
}
