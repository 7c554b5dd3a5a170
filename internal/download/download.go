// Package download saves exported engines to a directory
package download

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileDownloader writes exports into Dir, creating it when missing
type FileDownloader struct {
	fs  afero.Fs
	dir string
}

// New returns a downloader rooted at dir. A nil fs uses the OS filesystem.
func New(fs afero.Fs, dir string) *FileDownloader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &FileDownloader{fs: fs, dir: dir}
}

// Path returns where name will be written
func (d *FileDownloader) Path(name string) string {
	return filepath.Join(d.dir, filepath.Base(name))
}

// Save writes data to name inside the download directory
func (d *FileDownloader) Save(name string, data []byte) error {
	if err := d.fs.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", d.dir, err)
	}
	path := d.Path(name)
	if err := afero.WriteFile(d.fs, path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
