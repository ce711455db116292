package engine

import (
	"context"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/indexer"
	"github.com/packfs/packfs/internal/pathguard"
	"github.com/packfs/packfs/internal/workdir"
)

// dispatchContext carries the per-call state shared across the
// Validated/Dispatched/Executed/Indexed stages for one intent.
type dispatchContext struct {
	engine *Engine
	guard  *pathguard.Guard
	res    workdir.Resolution
	intent Intent
	ctx    context.Context
}

// validate runs the Path Guard on one path.
func (d *dispatchContext) validate(path string, op pathguard.Operation, contentLen int64) (*pathguard.Validated, error) {
	return d.guard.Validate(path, op, contentLen)
}

// withPathLock serializes writers on the same canonical path for the
// duration of fn, so two concurrent mutations of the same file never
// interleave their validate/write/index steps.
func (d *dispatchContext) withPathLock(relPath string, fn func() (Result, error)) (Result, error) {
	key := d.res.EffectiveRoot + "\x00" + relPath
	mu := d.engine.lockPath(key)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// reindexFile performs the Indexed stage for a single-file mutation on the
// default root. Non-default roots are never indexed.
func (d *dispatchContext) reindexFile(relPath string, kind indexer.ChangeKind) {
	if !d.res.IsDefault {
		return
	}
	_ = d.engine.indexer.IncrementalUpdate(relPath, kind)
}

// reindexAll performs the Indexed stage for a mutation whose blast radius
// spans more than one path (directory create/delete, move, copy). Skipped
// entirely for non-default roots.
func (d *dispatchContext) reindexAll() {
	if !d.res.IsDefault {
		return
	}
	_, _ = d.engine.indexer.Index(d.ctx)
}

func (d *dispatchContext) access() (Result, error) {
	switch d.intent.Purpose {
	case "read":
		return d.accessRead()
	case "preview":
		return d.accessPreview()
	case "metadata":
		return d.accessMetadata()
	case "verify_exists":
		return d.accessVerifyExists()
	case "create_or_get":
		return d.accessCreateOrGet()
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized access purpose", nil)
	}
}

func (d *dispatchContext) update() (Result, error) {
	switch d.intent.Purpose {
	case "create":
		return d.updateCreate()
	case "append":
		return d.updateAppend()
	case "overwrite":
		return d.updateOverwrite()
	case "merge":
		return d.updateMerge()
	case "patch":
		return d.updatePatch()
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized update purpose", nil)
	}
}

func (d *dispatchContext) organize() (Result, error) {
	switch d.intent.Purpose {
	case "create_directory":
		return d.organizeCreateDirectory()
	case "move":
		return d.organizeMove()
	case "copy":
		return d.organizeCopy()
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized organize purpose", nil)
	}
}

func (d *dispatchContext) remove() (Result, error) {
	switch d.intent.Purpose {
	case "delete_file":
		return d.removeFile()
	case "delete_directory":
		return d.removeDirectory()
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized remove purpose", nil)
	}
}
