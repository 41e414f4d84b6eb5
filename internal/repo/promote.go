package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/utils"
)

// Promote copies the freshly built repository tree at src into a
// date-suffixed sibling of dst, then atomically points dst at it via a
// symlink rename. Readers of dst only ever see the fully old or fully new
// tree. The previous target survives as dst+".old", so exactly one rollback
// generation is retained.
//
// The EEXIST loops are deliberate: generation directories and scratch
// symlinks from earlier runs today are expected, and the counter just walks
// past them.
func Promote(src, dst string) error {
	// A crispy fresh generation directory beside dst.
	var gen string
	for i := 0; ; i++ {
		gen = fmt.Sprintf("%s.%s.%d", dst, time.Now().Format("2006-01-02"), i)
		err := os.Mkdir(gen, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	for _, entry := range entries {
		if err := utils.CopyTree(src+"/"+entry.Name(), gen+"/"+entry.Name()); err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	// Stage a symlink to the new generation; the rename over dst below is
	// the atomic step. The generation is always a sibling of dst, and a
	// symlink target resolves relative to the link's own directory, so the
	// target must be the bare generation name or a relative dst would
	// publish a dangling link.
	var tmp string
	for i := 0; ; i++ {
		tmp = fmt.Sprintf("%s.TMP.%d", dst, i)
		err := os.Symlink(filepath.Base(gen), tmp)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	// Preserve the outgoing target under a staged .old symlink.
	var oldTmp string
	if fi, err := os.Lstat(dst); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		prev, err := os.Readlink(dst)
		if err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
		for i := 0; ; i++ {
			oldTmp = fmt.Sprintf("%s.old.%d", dst, i)
			err := os.Symlink(prev, oldTmp)
			if err == nil {
				break
			}
			if !os.IsExist(err) {
				return &models.BuildError{Type: models.ErrFileOp, Err: err}
			}
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	if oldTmp != "" {
		if err := os.Rename(oldTmp, dst+".old"); err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}

	logrus.Infof("published %s -> %s", dst, gen)
	return nil
}
