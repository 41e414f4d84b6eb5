package rpm

import (
	"fmt"
	"os"

	"github.com/sassoftware/go-rpmutils"

	"github.com/10gen/distropack/internal/models"
)

// Verify checks that path is a readable RPM built for the expected
// architecture before it is collected into a repository.
func Verify(path, wantArch string) error {
	f, err := os.Open(path)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	defer f.Close()

	pkg, err := rpmutils.ReadRpm(f)
	if err != nil {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s is not a valid rpm: %w", path, err),
		}
	}

	arch, err := pkg.Header.GetString(rpmutils.ARCH)
	if err != nil {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s has no architecture header: %w", path, err),
		}
	}
	// noarch subpackages (docs and the like) ride along with any target.
	if arch != wantArch && arch != "noarch" {
		return &models.BuildError{
			Type: models.ErrExternalTool,
			Err:  fmt.Errorf("%s built for %s, wanted %s", path, arch, wantArch),
		}
	}
	return nil
}
