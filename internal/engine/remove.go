package engine

import (
	"os"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/indexer"
	"github.com/packfs/packfs/internal/pathguard"
)

func (d *dispatchContext) removeFile() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}
	if v.RelativePath == "" || v.RelativePath == "." {
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "cannot remove the root itself", nil)
	}

	return d.withPathLock(v.RelativePath, func() (Result, error) {
		info, statErr := os.Stat(v.AbsolutePath)
		if statErr != nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "target does not exist", statErr).WithDetail("path", v.RelativePath)
		}
		if info.IsDir() {
			return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "target is a directory, use delete_directory", nil).WithDetail("path", v.RelativePath)
		}

		if err := os.Remove(v.AbsolutePath); err != nil {
			return Result{}, classifyWriteError(err, v.RelativePath)
		}
		d.reindexFile(v.RelativePath, indexer.ChangeRemoved)

		exists := false
		return Result{Success: true, Path: v.RelativePath, Exists: &exists}, nil
	})
}

func (d *dispatchContext) removeDirectory() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}
	if v.RelativePath == "" || v.RelativePath == "." {
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "cannot remove the root itself", nil)
	}

	info, statErr := os.Stat(v.AbsolutePath)
	if statErr != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "target does not exist", statErr).WithDetail("path", v.RelativePath)
	}
	if !info.IsDir() {
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "target is a file, use delete_file", nil).WithDetail("path", v.RelativePath)
	}

	entries, err := os.ReadDir(v.AbsolutePath)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}
	if len(entries) > 0 && !d.intent.Options.Recursive {
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "directory is not empty, set options.recursive", nil).WithDetail("path", v.RelativePath)
	}

	var removeErr error
	if d.intent.Options.Recursive {
		removeErr = os.RemoveAll(v.AbsolutePath)
	} else {
		removeErr = os.Remove(v.AbsolutePath)
	}
	if removeErr != nil {
		return Result{}, classifyWriteError(removeErr, v.RelativePath)
	}

	d.reindexAll()
	exists := false
	return Result{Success: true, Path: v.RelativePath, Exists: &exists}, nil
}
