package tarutil

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Pack writes dir as a gzipped tarball to w. Entry names are rooted at
// prefix when it is non-empty. Top-level names listed in exclude are
// skipped entirely.
func Pack(w io.Writer, dir, prefix string, exclude ...string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		rel = filepath.ToSlash(rel)
		top := strings.SplitN(rel, "/", 2)[0]
		if excluded[top] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = path.Join(prefix, rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return goerr.Wrap(err, "failed to archive directory", goerr.V("dir", dir))
	}

	if err := tw.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize tar archive")
	}
	if err := gz.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize gzip stream")
	}
	return nil
}

// Extract unpacks a gzipped tarball from r into dir. Entry paths escaping
// dir are rejected.
func Extract(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return goerr.Wrap(err, "failed to open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read tar entry")
		}

		dest := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
			return goerr.New("tar entry escapes destination directory",
				goerr.V("entry", hdr.Name), goerr.V("dest", dest))
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, fs.FileMode(hdr.Mode)); err != nil {
				return goerr.Wrap(err, "failed to create directory", goerr.V("dest", dest))
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return goerr.Wrap(err, "failed to create parent directory", goerr.V("dest", dest))
			}
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return goerr.Wrap(err, "failed to create symlink", goerr.V("dest", dest))
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return goerr.Wrap(err, "failed to create parent directory", goerr.V("dest", dest))
			}
			f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fs.FileMode(hdr.Mode))
			if err != nil {
				return goerr.Wrap(err, "failed to create file", goerr.V("dest", dest))
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return goerr.Wrap(err, "failed to write file content", goerr.V("dest", dest))
			}
			if err := f.Close(); err != nil {
				return goerr.Wrap(err, "failed to close file", goerr.V("dest", dest))
			}
		}
	}
}
