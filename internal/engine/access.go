package engine

import (
	"encoding/base64"
	"os"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/indexer"
	"github.com/packfs/packfs/internal/pathguard"
)

const defaultPreviewLines = 20

func (d *dispatchContext) accessRead() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpRead, 0)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "target does not exist", err).WithDetail("path", v.RelativePath)
	}
	if info.Size() > d.engine.cfg.Security.MaxFileSize {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileTooLarge, "file exceeds max_file_size", nil).WithDetail("path", v.RelativePath)
	}

	data, err := os.ReadFile(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	content := encodeContent(data)
	exists := true
	return Result{
		Success: true,
		Content: content,
		Exists:  &exists,
		Path:    v.RelativePath,
		Metadata: map[string]any{
			"size":     info.Size(),
			"modified": info.ModTime().UnixMilli(),
		},
	}, nil
}

func (d *dispatchContext) accessPreview() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpRead, 0)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "target does not exist", err).WithDetail("path", v.RelativePath)
	}

	data, err := os.ReadFile(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	n := d.intent.Options.PreviewLines
	if n <= 0 {
		n = defaultPreviewLines
	}
	return Result{
		Success: true,
		Preview: firstNLines(data, n),
		Path:    v.RelativePath,
		Metadata: map[string]any{
			"size":     info.Size(),
			"modified": info.ModTime().UnixMilli(),
		},
	}, nil
}

func (d *dispatchContext) accessMetadata() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpRead, 0)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "target does not exist", err).WithDetail("path", v.RelativePath)
	}

	return Result{
		Success: true,
		Path:    v.RelativePath,
		Metadata: map[string]any{
			"size":         info.Size(),
			"modified":     info.ModTime().UnixMilli(),
			"is_directory": info.IsDir(),
		},
	}, nil
}

func (d *dispatchContext) accessVerifyExists() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpRead, 0)
	if err != nil {
		return Result{}, err
	}

	_, statErr := os.Stat(v.AbsolutePath)
	exists := statErr == nil
	return Result{Success: true, Exists: &exists, Path: v.RelativePath}, nil
}

func (d *dispatchContext) accessCreateOrGet() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpWrite, int64(len(d.intent.Content)))
	if err != nil {
		return Result{}, err
	}

	if info, statErr := os.Stat(v.AbsolutePath); statErr == nil {
		data, readErr := os.ReadFile(v.AbsolutePath)
		if readErr != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, readErr)
		}
		exists, created := true, false
		return Result{
			Success: true,
			Content: encodeContent(data),
			Exists:  &exists,
			Created: &created,
			Path:    v.RelativePath,
			Metadata: map[string]any{
				"size":     info.Size(),
				"modified": info.ModTime().UnixMilli(),
			},
		}, nil
	}

	return d.withPathLock(v.RelativePath, func() (Result, error) {
		if d.intent.Options.CreatePath {
			if err := ensureParentDir(v.AbsolutePath); err != nil {
				return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
			}
		}
		if err := atomicWrite(v.AbsolutePath, d.intent.Content); err != nil {
			return Result{}, classifyWriteError(err, v.RelativePath)
		}
		d.reindexFile(v.RelativePath, indexer.ChangeModified)

		exists, created := true, true
		return Result{
			Success:      true,
			Content:      encodeContent(d.intent.Content),
			Exists:       &exists,
			Created:      &created,
			Path:         v.RelativePath,
			BytesWritten: len(d.intent.Content),
		}, nil
	})
}

func encodeContent(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func firstNLines(data []byte, n int) string {
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "")
}
