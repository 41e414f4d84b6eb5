package assemble

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/10gen/distropack/internal/pkgspec"
)

// fakeExporter plays the metadata repository: it records what was asked for
// and drops a canned file tree into the staging dir.
type fakeExporter struct {
	exports []string
}

func (f *fakeExporter) ExportTree(ctx context.Context, rev, path, dstDir string) error {
	f.exports = append(f.exports, rev+":"+path)
	marker := filepath.Join(dstDir, path, "exported")
	if err := os.MkdirAll(filepath.Dir(marker), 0755); err != nil {
		return err
	}
	return os.WriteFile(marker, []byte(path), 0644)
}

func writeTarball(t *testing.T, dir string, bins ...string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, bin := range bins {
		body := "#!" + bin
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: "mongodb-linux-x86_64-2.7.8/bin/" + bin,
			Mode: 0755,
			Size: int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, "mongodb-linux-x86_64-2.7.8.tgz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestPopulate(t *testing.T) {
	tmp := t.TempDir()
	tarball := writeTarball(t, tmp, "mongod", "mongos", "mongosniff")

	spec, err := pkgspec.New("2.7.8", "", 0)
	require.NoError(t, err)

	exp := &fakeExporter{}
	a := &Assembler{SCM: exp, Product: "mongodb-linux", Excludes: []string{"mongosniff"}}

	staging := filepath.Join(tmp, "staging")
	require.NoError(t, a.Populate(context.Background(), staging, tarball, "x86_64", spec))

	// Both metadata trees exported at the resolved revision.
	require.Equal(t, []string{"r2.7.8:debian", "r2.7.8:rpm"}, exp.exports)
	require.FileExists(t, filepath.Join(staging, "debian", "exported"))
	require.FileExists(t, filepath.Join(staging, "rpm", "exported"))

	// Binaries land under BINARIES/usr/bin without the wrapper directory.
	binDir := filepath.Join(staging, BinaryDir, "usr", "bin")
	require.FileExists(t, filepath.Join(binDir, "mongod"))
	require.FileExists(t, filepath.Join(binDir, "mongos"))

	// The exclude list holds.
	require.NoFileExists(t, filepath.Join(binDir, "mongosniff"))
}

func TestPopulateExcludeAbsent(t *testing.T) {
	tmp := t.TempDir()
	tarball := writeTarball(t, tmp, "mongod")

	spec, err := pkgspec.New("2.7.8", "", 0)
	require.NoError(t, err)

	a := &Assembler{SCM: &fakeExporter{}, Product: "mongodb-linux", Excludes: []string{"mongosniff"}}
	// An excluded binary missing from the archive is fine.
	require.NoError(t, a.Populate(context.Background(), filepath.Join(tmp, "staging"), tarball, "x86_64", spec))
}

func TestPopulateBadArchive(t *testing.T) {
	tmp := t.TempDir()
	tarball := filepath.Join(tmp, "bogus.tgz")
	require.NoError(t, os.WriteFile(tarball, []byte("not a tarball"), 0644))

	spec, err := pkgspec.New("2.7.8", "", 0)
	require.NoError(t, err)

	a := &Assembler{SCM: &fakeExporter{}, Product: "mongodb-linux"}
	staging := filepath.Join(tmp, "staging")
	require.Error(t, a.Populate(context.Background(), staging, tarball, "x86_64", spec))

	// The partial staging dir stays behind for postmortem.
	require.DirExists(t, staging)
}
