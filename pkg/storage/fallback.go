package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTargetLocked reports a target file currently held open by a spreadsheet editor.
var ErrTargetLocked = errors.New("target file is locked")

// PersistenceError is returned when neither the target nor its fallback could be written.
type PersistenceError struct {
	Path         string
	FallbackPath string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (fallback %s): %v", e.Path, e.FallbackPath, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SaveResult describes where a document ended up.
type SaveResult struct {
	Path     string
	Fallback bool
	Cause    error
}

// WriteFunc streams a document body.
type WriteFunc func(w io.Writer) error

// WriteAtomic writes to a temporary file next to path and renames it into
// place. The temporary file is removed on any failure.
func WriteAtomic(path string, write WriteFunc) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// SaveWithFallback writes a document to path. When the target is locked or
// the write fails, it retries once at a timestamp-suffixed sibling path.
func SaveWithFallback(path string, now time.Time, write WriteFunc) (SaveResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return SaveResult{}, &PersistenceError{Path: path, Err: err}
	}

	var cause error
	if IsLocked(path) {
		cause = ErrTargetLocked
	} else if cause = WriteAtomic(path, write); cause == nil {
		return SaveResult{Path: path}, nil
	}

	alt := FallbackPath(path, now)
	if err := WriteAtomic(alt, write); err != nil {
		return SaveResult{}, &PersistenceError{Path: path, FallbackPath: alt, Err: errors.Join(cause, err)}
	}
	return SaveResult{Path: alt, Fallback: true, Cause: cause}, nil
}

// FallbackPath returns name_YYYYMMDD_HHMMSS.ext next to path.
func FallbackPath(path string, now time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext)
}

// IsLocked reports whether a spreadsheet editor holds path open. Excel leaves
// a "~$name" owner file and LibreOffice a ".~lock.name#" file beside it.
func IsLocked(path string) bool {
	dir, name := filepath.Split(path)
	for _, marker := range []string{"~$" + name, ".~lock." + name + "#"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
