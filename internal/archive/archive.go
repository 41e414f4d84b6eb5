// Package archive reads and writes the tar archives the build pipeline
// moves binaries around in. Compression is sniffed from magic bytes, not
// file extensions: release tarballs are gzipped, some nightly archives ship
// as xz.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic = []byte{0x1F, 0x8B}
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
)

// decompress wraps r with the decompressor its magic bytes call for, or
// returns the stream unchanged for plain tar.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, xzMagic):
		return xz.NewReader(br)
	case bytes.HasPrefix(head, gzipMagic):
		return gzip.NewReader(br)
	default:
		return br, nil
	}
}

// Untar expands a tar stream into dir.
func Untar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		case header == nil:
			continue
		}
		if err := checkLocal(header.Name); err != nil {
			return err
		}
		if err := writeEntry(tr, header, filepath.Join(dir, header.Name)); err != nil {
			return err
		}
	}
}

// checkLocal rejects entry names that would escape the extraction root.
func checkLocal(name string) error {
	if !filepath.IsLocal(filepath.FromSlash(strings.TrimSuffix(name, "/"))) {
		return fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return nil
}

// ExtractSubtree extracts only the entries under prefix from the (possibly
// compressed) tar archive at path, writing them into dir with the prefix
// stripped. The wrapper directory the archive nests everything under never
// touches the filesystem.
func ExtractSubtree(path, prefix, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	prefix = strings.TrimSuffix(prefix, "/") + "/"
	found := false
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		switch {
		case err == io.EOF:
			if !found {
				return fmt.Errorf("%s: no entries under %s", path, prefix)
			}
			return nil
		case err != nil:
			return err
		case header == nil:
			continue
		}

		rel := strings.TrimPrefix(header.Name, prefix)
		if rel == header.Name {
			continue
		}
		found = true
		if rel == "" {
			continue
		}
		if err := checkLocal(rel); err != nil {
			return err
		}
		if err := writeEntry(tr, header, filepath.Join(dir, rel)); err != nil {
			return err
		}
	}
}

func writeEntry(tr *tar.Reader, header *tar.Header, target string) error {
	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0755)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
			return err
		}
		return nil
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case tar.TypeLink:
		logrus.Warnf("skipping hardlink entry %s", header.Name)
		return nil
	default:
		// char/block devices and the like have no business in a
		// binary release archive
		return nil
	}
}

// TarGzDir packages the tree rooted at srcDir into a gzipped tarball at
// dstPath, with every entry nested under the directory's base name the way
// rpmbuild expects a source tarball to be laid out. Permission bits are
// preserved.
func TarGzDir(srcDir, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	base := filepath.Base(srcDir)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = base + "/" + filepath.ToSlash(rel)
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Sync()
}
