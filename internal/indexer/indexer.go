// Package indexer walks a rooted tree and maintains the Index Store,
// bounded by depth and exclusion rules, with support for incremental
// re-index on a single changed path.
package indexer

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/packfs/packfs/internal/gitignore"
	"github.com/packfs/packfs/internal/indexstore"
	"github.com/packfs/packfs/internal/keywords"
)

// Options configures a single indexing pass.
type Options struct {
	MaxDepth           int
	MaxFileSize        int64
	ReadCapBytes       int64
	MaxKeywordsPerFile int
	BlockedSegments    []string
	Concurrency        int
}

// Stats reports the outcome of an Index call.
type Stats struct {
	FilesVisited     int
	FilesIndexed     int
	DirsVisited      int
	FilesSkipped     int
	FilesTooLarge    int
	Warnings         []string
	DurationMS       int64
}

// ChangeKind classifies an incremental_update call.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeRemoved
)

// Indexer walks a tree and maintains an indexstore.Store.
type Indexer struct {
	store   *indexstore.Store
	blocked *gitignore.Matcher
	opts    Options
}

// New builds an Indexer writing into store.
func New(store *indexstore.Store, opts Options) *Indexer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 10
	}
	if opts.ReadCapBytes <= 0 {
		opts.ReadCapBytes = 262144
	}
	if opts.MaxKeywordsPerFile <= 0 {
		opts.MaxKeywordsPerFile = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	matcher := gitignore.New()
	for _, seg := range opts.BlockedSegments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		matcher.AddPattern("**/" + seg)
		matcher.AddPattern("**/" + seg + "/**")
	}

	return &Indexer{store: store, blocked: matcher, opts: opts}
}

type queueItem struct {
	absPath string
	relPath string
	depth   int
}

// Index performs a full walk of store.Root(), inserting/updating entries and
// pruning paths no longer present.
func (ix *Indexer) Index(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	root := ix.store.Root()
	visited := make(map[string]struct{})
	queue := []queueItem{{absPath: root, relPath: "", depth: 0}}

	keepPaths := make(map[string]struct{})
	var fileJobs []queueItem

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			stats.Warnings = append(stats.Warnings, "cancelled before completion")
			return ix.finish(stats, keepPaths, start, ctx.Err())
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth > ix.opts.MaxDepth {
			continue
		}

		real, err := filepath.EvalSymlinks(item.absPath)
		if err != nil {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("realpath %s: %v", item.relPath, err))
			continue
		}
		if _, ok := visited[real]; ok {
			continue
		}
		visited[real] = struct{}{}

		entries, err := os.ReadDir(item.absPath)
		if err != nil {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("read dir %s: %v", item.relPath, err))
			continue
		}
		stats.DirsVisited++

		for _, de := range entries {
			name := de.Name()
			childRel := joinRel(item.relPath, name)
			if ix.isBlocked(childRel, de.IsDir()) {
				continue
			}
			childAbs := filepath.Join(item.absPath, name)

			if de.IsDir() {
				queue = append(queue, queueItem{absPath: childAbs, relPath: childRel, depth: item.depth + 1})
				keepPaths[childRel] = struct{}{}
				continue
			}

			stats.FilesVisited++
			keepPaths[childRel] = struct{}{}
			fileJobs = append(fileJobs, queueItem{absPath: childAbs, relPath: childRel, depth: item.depth})
		}
	}

	if err := ix.indexFiles(ctx, fileJobs, &stats); err != nil {
		return ix.finish(stats, keepPaths, start, err)
	}

	return ix.finish(stats, keepPaths, start, nil)
}

func (ix *Indexer) finish(stats Stats, keepPaths map[string]struct{}, start time.Time, err error) (Stats, error) {
	ix.store.Prune(keepPaths)
	if perr := ix.store.Persist(); err == nil {
		err = perr
	}
	stats.DurationMS = time.Since(start).Milliseconds()
	return stats, err
}

func (ix *Indexer) indexFiles(ctx context.Context, jobs []queueItem, stats *Stats) error {
	type result struct {
		entry   indexstore.FileEntry
		skipped bool
		warning string
	}
	results := make([]result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			entry, warning := ix.indexOne(job)
			results[i] = result{entry: entry, warning: warning}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		if r.warning != "" {
			stats.Warnings = append(stats.Warnings, r.warning)
			stats.FilesSkipped++
			continue
		}
		if len(r.entry.Keywords) == 0 && r.entry.SizeBytes > ix.opts.MaxFileSize {
			stats.FilesTooLarge++
		}
		ix.store.Put(r.entry)
		stats.FilesIndexed++
	}
	return nil
}

// indexOne stats a single file and re-extracts keywords only when its size
// or mtime changed since the last index.
func (ix *Indexer) indexOne(job queueItem) (indexstore.FileEntry, string) {
	info, err := os.Stat(job.absPath)
	if err != nil {
		return indexstore.FileEntry{}, fmt.Sprintf("stat %s: %v", job.relPath, err)
	}

	entry := indexstore.FileEntry{
		Path:        job.relPath,
		SizeBytes:   info.Size(),
		MtimeMS:     info.ModTime().UnixMilli(),
		Extension:   extensionOf(job.relPath),
		IsDirectory: false,
	}

	if existing, ok := ix.store.Get(job.relPath); ok &&
		existing.MtimeMS == entry.MtimeMS && existing.SizeBytes == entry.SizeBytes {
		entry.ContentHash = existing.ContentHash
		entry.Keywords = existing.Keywords
		return entry, ""
	}

	if info.Size() > ix.opts.MaxFileSize {
		return entry, ""
	}

	content, err := readCapped(job.absPath, ix.opts.ReadCapBytes)
	if err != nil {
		return entry, fmt.Sprintf("read %s: %v", job.relPath, err)
	}

	entry.ContentHash = hashContent(content)
	entry.Keywords = keywords.Extract(content, filepath.Base(job.relPath), ix.opts.MaxKeywordsPerFile)
	return entry, ""
}

// IncrementalUpdate reindexes (or removes) a single path without a full
// walk.
func (ix *Indexer) IncrementalUpdate(relPath string, kind ChangeKind) error {
	relPath = filepath.ToSlash(relPath)
	if kind == ChangeRemoved {
		ix.store.Remove(relPath)
		return ix.store.Persist()
	}

	absPath := filepath.Join(ix.store.Root(), filepath.FromSlash(relPath))
	entry, warning := ix.indexOne(queueItem{absPath: absPath, relPath: relPath})
	if warning != "" {
		return fmt.Errorf("%s", warning)
	}
	ix.store.Put(entry)
	return ix.store.Persist()
}

func (ix *Indexer) isBlocked(relPath string, isDir bool) bool {
	return ix.blocked.Match(relPath, isDir)
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func extensionOf(relPath string) string {
	base := filepath.Base(relPath)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

func readCapped(path string, readCap int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, readCap)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

func hashContent(content []byte) string {
	h := fnv.New64a()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
