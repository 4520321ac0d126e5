package deliver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeBundle zips the group's artifacts into a single archive at path.
func writeBundle(path string, items []Item) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating bundle dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(f)
	for _, it := range items {
		if err := addToZip(w, it.Path); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing bundle: %w", err)
	}
	return nil
}

func addToZip(w *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", path, err)
	}
	defer src.Close()

	dst, err := w.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("adding %s to bundle: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("writing %s into bundle: %w", path, err)
	}
	return nil
}
