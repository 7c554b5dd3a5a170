package resources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Loader reads resources.json files
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a loader over fs (afero.NewOsFs() in production)
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// ReadText returns the raw file content. The text is handed to the
// dashboard unparsed so a malformed file surfaces as a recoverable error.
func (l *Loader) ReadText(path string) (string, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", fmt.Errorf("read resources %s: %w", path, err)
	}
	return string(data), nil
}

// Watch calls onChange with the file content whenever path is written or
// recreated, until ctx is cancelled. The parent directory is watched so
// editors that replace the file are handled.
func (l *Loader) Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(text string)) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				text, err := l.ReadText(abs)
				if err != nil {
					logger.Warn("resources reload failed", "path", abs, "error", err)
					continue
				}
				logger.Debug("resources changed", "path", abs)
				onChange(text)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("resources watcher error", "error", err)
			}
		}
	}()
	return nil
}
