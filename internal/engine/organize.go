package engine

import (
	"errors"
	"io"
	"os"
	"syscall"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/pathguard"
)

func (d *dispatchContext) organizeCreateDirectory() (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}

	_, statErr := os.Stat(v.AbsolutePath)
	alreadyExisted := statErr == nil

	if !alreadyExisted {
		if err := os.MkdirAll(v.AbsolutePath, 0755); err != nil {
			return Result{}, classifyWriteError(err, v.RelativePath)
		}
		d.reindexAll()
	}

	created := !alreadyExisted
	exists := true
	return Result{Success: true, Path: v.RelativePath, Exists: &exists, Created: &created}, nil
}

func (d *dispatchContext) organizeMove() (Result, error) {
	src, err := d.validate(d.intent.Source.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}
	dst, err := d.validate(d.intent.Destination.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}

	if _, statErr := os.Stat(src.AbsolutePath); statErr != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "source does not exist", statErr).WithDetail("path", src.RelativePath)
	}

	if d.intent.Options.CreatePath {
		if err := ensureParentDir(dst.AbsolutePath); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
	}

	if err := os.Rename(src.AbsolutePath, dst.AbsolutePath); err != nil {
		if !isCrossDeviceError(err) {
			return Result{}, classifyWriteError(err, src.RelativePath)
		}
		if err := copyPath(src.AbsolutePath, dst.AbsolutePath); err != nil {
			return Result{}, classifyWriteError(err, src.RelativePath)
		}
		if err := os.RemoveAll(src.AbsolutePath); err != nil {
			_ = os.RemoveAll(dst.AbsolutePath)
			return Result{}, classifyWriteError(err, src.RelativePath)
		}
	}

	d.reindexAll()
	return Result{Success: true, Path: dst.RelativePath}, nil
}

func (d *dispatchContext) organizeCopy() (Result, error) {
	src, err := d.validate(d.intent.Source.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}
	dst, err := d.validate(d.intent.Destination.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}

	if _, statErr := os.Stat(src.AbsolutePath); statErr != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "source does not exist", statErr).WithDetail("path", src.RelativePath)
	}

	if d.intent.Options.CreatePath {
		if err := ensureParentDir(dst.AbsolutePath); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
	}

	if err := copyPath(src.AbsolutePath, dst.AbsolutePath); err != nil {
		return Result{}, classifyWriteError(err, src.RelativePath)
	}

	d.reindexAll()
	return Result{Success: true, Path: dst.RelativePath}, nil
}

func copyPath(srcAbs, dstAbs string) error {
	info, err := os.Stat(srcAbs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(srcAbs, dstAbs)
	}
	return copyFile(srcAbs, dstAbs)
}

func copyDir(srcAbs, dstAbs string) error {
	entries, err := os.ReadDir(srcAbs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dstAbs, 0755); err != nil {
		return err
	}
	for _, entry := range entries {
		childSrc := srcAbs + string(os.PathSeparator) + entry.Name()
		childDst := dstAbs + string(os.PathSeparator) + entry.Name()
		if err := copyPath(childSrc, childDst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(srcAbs, dstAbs string) error {
	in, err := os.Open(srcAbs)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dstAbs + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstAbs)
}

func isCrossDeviceError(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
