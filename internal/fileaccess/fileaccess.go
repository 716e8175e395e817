// Package fileaccess wraps platform file primitives behind a small accessor
// with documented save and read semantics.
package fileaccess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrEmptyPath is returned when a required path argument is empty or
// contains only whitespace. It is reported before any I/O is attempted.
var ErrEmptyPath = errors.New("path is empty or whitespace")

// backupTimestampLayout is the second-precision portion of the rename
// suffix applied to pre-existing files; milliseconds are appended on top.
const backupTimestampLayout = "20060102150405"

// Accessor performs file-system operations on behalf of callers. It holds
// no state; every call is independent.
type Accessor struct{}

// New creates an Accessor.
func New() *Accessor {
	return &Accessor{}
}

// FileName returns the trailing segment of path.
func (a *Accessor) FileName(path string) (string, error) {
	if err := requirePath("file name", path); err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

// FileExtension returns the extension of path including the dot, or ""
// when the path has none. Any input is accepted.
func (a *Accessor) FileExtension(path string) string {
	return filepath.Ext(path)
}

// FileExists reports whether a regular file exists at path. Any input is
// accepted; stat failures count as absent.
func (a *Accessor) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Combine joins any number of path segments into a single path using the
// platform separator.
func (a *Accessor) Combine(parts ...string) string {
	return filepath.Join(parts...)
}

// FullPath resolves path to an absolute, normalized form.
func (a *Accessor) FullPath(path string) (string, error) {
	if err := requirePath("full path", path); err != nil {
		return "", err
	}
	full, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return full, nil
}

// DirectoryName returns the directory containing the file at path.
func (a *Accessor) DirectoryName(path string) (string, error) {
	if err := requirePath("directory name", path); err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// EnsureDirectory resolves path to its full form and creates the directory
// together with any missing ancestors. Calling it on an existing directory
// is a no-op. The resolved path is returned.
func (a *Accessor) EnsureDirectory(path string) (string, error) {
	if err := requirePath("ensure directory", path); err != nil {
		return "", err
	}
	full, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", full, err)
	}
	return full, nil
}

// Save writes the remaining content of r to path, creating missing parent
// directories first. A file already present at the destination is renamed
// with a timestamp suffix so its content survives as a backup; two saves
// within the same millisecond produce the same suffix and the newer backup
// replaces the older one.
//
// The whole input is buffered in memory before the write, so very large
// inputs should be split upstream. r is left open for the caller.
func (a *Accessor) Save(path string, r io.Reader) error {
	if err := requirePath("save", path); err != nil {
		return err
	}
	full, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent directory of %s: %w", full, err)
	}

	if _, err := os.Stat(full); err == nil {
		backup := full + "." + backupSuffix(time.Now())
		if err := os.Rename(full, backup); err != nil {
			return fmt.Errorf("back up existing file %s: %w", full, err)
		}
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read content for %s: %w", full, err)
	}

	// O_EXCL: the destination was either absent or renamed away above, so a
	// file reappearing here means a concurrent writer won the path.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", full, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", full, err)
	}
	return f.Close()
}

// ReadStream opens the file at path for shared reading. The caller must
// close the returned stream. A missing file yields (nil, nil) rather than
// an error.
func (a *Accessor) ReadStream(path string) (io.ReadCloser, error) {
	if err := requirePath("read stream", path); err != nil {
		return nil, err
	}
	full, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", full, err)
	}
	return f, nil
}

// ReadText returns the full text content of the file at path. A missing
// file yields ("", nil) rather than an error.
func (a *Accessor) ReadText(path string) (string, error) {
	if err := requirePath("read text", path); err != nil {
		return "", err
	}
	full, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", full, err)
	}
	return string(data), nil
}

// requirePath rejects empty or whitespace-only paths before any I/O.
func requirePath(op, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPath)
	}
	return nil
}

// backupSuffix renders t as yyyymmddhhmmss followed by three millisecond
// digits, 17 digits total.
func backupSuffix(t time.Time) string {
	return t.Format(backupTimestampLayout) + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}
