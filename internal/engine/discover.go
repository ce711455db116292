package engine

import (
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/indexer"
	"github.com/packfs/packfs/internal/indexstore"
	"github.com/packfs/packfs/internal/pathguard"
	"github.com/packfs/packfs/internal/search"
)

func (d *dispatchContext) discover() (Result, error) {
	start := time.Now()

	store, err := d.discoveryStore()
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
	}

	opts := search.Options{MaxResults: d.intent.Options.MaxResults, Threshold: d.intent.Options.Threshold}
	if opts.MaxResults <= 0 {
		opts.MaxResults = d.engine.cfg.Engine.MaxResults
	}
	if opts.Threshold <= 0 {
		opts.Threshold = d.engine.cfg.Engine.SemanticThreshold
	}

	switch d.intent.Purpose {
	case "list":
		return d.discoverList(start)
	case "find":
		entries := store.Snapshot()
		hits, err := search.Find(entries, d.intent.Target.Pattern, opts)
		if err != nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "invalid glob pattern", err)
		}
		return d.assembleHits(hits, start), nil
	case "search_content":
		hits, err := search.SearchContent(d.res.EffectiveRoot, store, d.intent.Target.Pattern, opts)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
		return d.assembleHits(hits, start), nil
	case "search_semantic":
		hits := search.SearchSemantic(store, d.intent.Target.SemanticQuery, opts)
		return d.assembleHits(hits, start), nil
	case "search_integrated":
		query := d.intent.Target.SemanticQuery
		if query == "" {
			query = d.intent.Target.Pattern
		}
		hits, err := search.SearchIntegrated(d.res.EffectiveRoot, store, query, opts)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err)
		}
		return d.assembleHits(hits, start), nil
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized discover purpose", nil)
	}
}

func (d *dispatchContext) discoverList(start time.Time) (Result, error) {
	v, err := d.validate(d.intent.Target.Path, pathguard.OpOther, 0)
	if err != nil {
		return Result{}, err
	}

	entries, err := search.List(v.AbsolutePath, v.RelativePath)
	if err != nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeFileNotFound, "directory does not exist", err).WithDetail("path", v.RelativePath)
	}

	files := make([]FileDescriptor, 0, len(entries))
	for _, e := range entries {
		// Skip the index snapshot's own files (snapshot, lock, temp) at the
		// root, and any child that matches a blocked segment.
		if v.RelativePath == "" && strings.HasPrefix(e.Name, indexstore.DefaultSnapshotName) {
			continue
		}
		if _, err := d.validate(e.Path, pathguard.OpOther, 0); err != nil {
			continue
		}
		files = append(files, FileDescriptor{
			Name:      e.Name,
			Path:      e.Path,
			IsDir:     e.IsDir,
			Size:      e.Size,
			ItemCount: e.ItemCount,
		})
	}

	return Result{
		Success:      true,
		Files:        files,
		TotalFound:   len(files),
		SearchTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (d *dispatchContext) assembleHits(hits []search.Hit, start time.Time) Result {
	files := make([]FileDescriptor, 0, len(hits))
	for _, h := range hits {
		files = append(files, FileDescriptor{
			Name:    filepath.Base(h.Path),
			Path:    h.Path,
			Score:   h.Score,
			Snippet: h.Snippet,
		})
	}
	return Result{
		Success:      true,
		Files:        files,
		TotalFound:   len(files),
		SearchTimeMS: time.Since(start).Milliseconds(),
	}
}

// discoveryStore returns the Index Store to search against. The default
// root uses the engine's persistent store. Any other working_directory
// gets a throwaway store that is indexed once for this call and never
// persisted or merged back, preserving the isolation invariant that
// non-default roots never touch the default snapshot.
func (d *dispatchContext) discoveryStore() (*indexstore.Store, error) {
	if d.res.IsDefault {
		return d.engine.store, nil
	}

	transient, err := indexstore.Open(d.res.EffectiveRoot)
	if err != nil {
		return nil, err
	}
	idx := indexer.New(transient, indexer.Options{
		MaxDepth:           d.engine.cfg.Engine.MaxIndexDepth,
		MaxFileSize:        d.engine.cfg.Security.MaxFileSize,
		ReadCapBytes:       d.engine.cfg.Engine.ReadCapBytes,
		MaxKeywordsPerFile: d.engine.cfg.Engine.MaxKeywordsPerFile,
		BlockedSegments:    d.engine.cfg.Security.BlockedPathSegments,
	})
	if _, err := idx.Index(d.ctx); err != nil {
		return nil, err
	}
	return transient, nil
}
