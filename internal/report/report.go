// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package report persists the summary lines of a run to the report artifact.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	DefaultPath = "reports/weather_report.txt"

	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ErrEmptyPath is returned when the writer has no target path.
var ErrEmptyPath = errors.New("report path is empty")

// Writer replaces the artifact file on every Write. It never appends.
type Writer struct {
	fs   afero.Fs
	path string
}

// NewWriter returns a Writer for the given path on the operating system's filesystem.
func NewWriter(path string) *Writer {
	return NewWriterFs(afero.NewOsFs(), path)
}

// NewWriterFs returns a Writer for the given path on fs.
func NewWriterFs(fs afero.Fs, path string) *Writer {
	return &Writer{fs: fs, path: path}
}

// Path returns the artifact path.
func (w *Writer) Path() string {
	return w.path
}

// Render returns the artifact content for the given lines: one newline terminated line each.
func Render(lines []string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Write creates the parent directories and replaces the artifact with the given lines. The content
// is written to a temporary file in the target directory first and renamed over the target, so
// readers never observe a partial report.
func (w *Writer) Write(lines []string) error {
	if w.path == "" {
		return ErrEmptyPath
	}
	dir := filepath.Dir(w.path)
	if err := w.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create report directory %q: %w", dir, err)
	}

	tmp, err := afero.TempFile(w.fs, dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(Render(lines)); err != nil {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err = w.fs.Chmod(tmpName, filePerm); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err = w.fs.Rename(tmpName, w.path); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace report %q: %w", w.path, err)
	}
	return nil
}
