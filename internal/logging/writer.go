package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/packfs/packfs/internal/errors"
)

// RotatingWriter is an io.Writer over a single log file that rotates once
// the file crosses maxSize, keeping at most maxFiles rotated copies
// (packfs.log -> packfs.log.1 -> packfs.log.2 -> ... -> deleted).
// Every write is synced immediately: the log is the first place an operator
// looks after an engine fault, so it must never sit in a buffer.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens (or creates) the log file at path, sized for
// rotation at maxSizeMB megabytes with up to maxFiles rotated copies kept.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write satisfies io.Writer, rotating first if p would overflow maxSize.
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			os.Stderr.WriteString("packfs: log rotation failed: " + err.Error() + "\n")
		}
	}

	n, err = w.file.Write(p)
	w.written += int64(n)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Sync flushes the current file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

func (w *RotatingWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
		w.file = nil
	}

	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)

	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	type rotatedFile struct {
		path string
		num  int
	}
	var files []rotatedFile
	for _, m := range matches {
		suffix := strings.TrimPrefix(filepath.Base(m), base+".")
		num, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{path: m, num: num})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].num > files[j].num })

	for _, f := range files {
		if f.num >= w.maxFiles {
			_ = os.Remove(f.path)
			continue
		}
		_ = os.Rename(f.path, w.path+"."+strconv.Itoa(f.num+1))
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.path+".1"); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
	}

	w.written = 0
	return w.openFile()
}
