// Package fetch maintains the local cache of downloaded binary archives,
// keyed by (arch, version). The cache is the one resource concurrent builds
// share, so population goes through singleflight: builds for different
// distros on the same (arch, version) download once.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/utils"
)

// DefaultURL is the binary archive URL template, filled with (arch, version).
const DefaultURL = "http://fastdl.mongodb.org/linux/mongodb-linux-%s-%s.tgz"

// Fetcher downloads binary archives into a local cache.
type Fetcher struct {
	CacheDir    string // holds the dl/ tree
	URLTemplate string // two %s verbs: arch, version
	Product     string // archive basename prefix, e.g. "mongodb-linux"

	group singleflight.Group
}

// Path returns the cache location for (arch, version).
func (f *Fetcher) Path(arch, version string) string {
	return filepath.Join(f.CacheDir, "dl", fmt.Sprintf("%s-%s-%s.tgz", f.Product, arch, version))
}

// Fetch downloads the binary archive for (arch, version) into the cache and
// returns its path. A cached copy is reused; concurrent callers sharing a
// key wait for a single download.
func (f *Fetcher) Fetch(ctx context.Context, arch, version string) (string, error) {
	dst := f.Path(arch, version)
	_, err, _ := f.group.Do(arch+"/"+version, func() (interface{}, error) {
		if _, err := os.Stat(dst); err == nil {
			logrus.Debugf("using cached %s", dst)
			return nil, nil
		}
		if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
			return nil, &models.BuildError{Type: models.ErrFileOp, Err: err}
		}

		src := fmt.Sprintf(f.URLTemplate, arch, version)
		logrus.Infof("fetching %s to %s", src, dst)
		client := &getter.Client{
			Ctx:             ctx,
			Src:             src,
			Dst:             dst,
			Mode:            getter.ClientModeFile,
			DisableSymlinks: true,
		}
		if err := client.Get(); err != nil {
			return nil, &models.BuildError{
				Type: models.ErrNetwork,
				Err:  fmt.Errorf("download %s: %w", src, err),
			}
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

// UseLocal copies a pre-downloaded archive into the cache slot for
// (arch, version) and returns the cache path.
func (f *Fetcher) UseLocal(src, arch, version string) (string, error) {
	dst := f.Path(arch, version)
	if err := utils.CopyFile(src, dst); err != nil {
		return "", &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	return dst, nil
}
