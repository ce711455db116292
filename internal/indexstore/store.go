package indexstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

// DefaultSnapshotName is the canonical snapshot filename.
const DefaultSnapshotName = ".packfs-index.json"

// legacySnapshotDir/legacySnapshotFile is an older snapshot location that
// load still tolerates: a root migrated from a prior layout should not
// lose its index on first open.
const legacySnapshotDir = ".packfs"
const legacySnapshotFile = "semantic-index.json"

// Store is the single-writer, multi-reader in-memory snapshot plus its
// on-disk persistence.
type Store struct {
	mu sync.RWMutex

	root string
	path string

	entries      map[string]FileEntry
	keywordIndex map[string]map[string]struct{}
	version      int64
	createdAt    int64
	updatedAt    int64

	fileLock *flock.Flock

	watchMu        sync.Mutex
	watcher        *fsnotify.Watcher
	lastSelfWriteT time.Time
	tampered       bool
}

// Open loads (or initializes) the store for root. root must already be an
// absolute, canonical path.
func Open(root string) (*Store, error) {
	s := &Store{
		root:         root,
		path:         filepath.Join(root, DefaultSnapshotName),
		entries:      make(map[string]FileEntry),
		keywordIndex: make(map[string]map[string]struct{}),
	}
	s.fileLock = flock.New(s.path + ".lock")

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the snapshot from disk, tolerating the legacy location and
// treating any malformed document as "rebuild from scratch".
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if legacy, legacyErr := os.ReadFile(filepath.Join(s.root, legacySnapshotDir, legacySnapshotFile)); legacyErr == nil {
			data = legacy
		} else {
			s.resetEmpty()
			return nil
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.resetEmpty()
		return nil
	}
	if doc.Version != currentSchemaVersion || doc.Root == "" {
		s.resetEmpty()
		return nil
	}

	s.entries = make(map[string]FileEntry, len(doc.Entries))
	for _, e := range doc.Entries {
		s.entries[e.Path] = e
	}
	s.keywordIndex = make(map[string]map[string]struct{}, len(doc.KeywordIndex))
	for _, ke := range doc.KeywordIndex {
		set := make(map[string]struct{}, len(ke.Paths))
		for _, p := range ke.Paths {
			set[p] = struct{}{}
		}
		s.keywordIndex[ke.Token] = set
	}
	s.version = doc.SnapVersion
	s.createdAt = doc.CreatedAt
	s.updatedAt = doc.UpdatedAt
	return nil
}

func (s *Store) resetEmpty() {
	s.entries = make(map[string]FileEntry)
	s.keywordIndex = make(map[string]map[string]struct{})
	s.version = 0
	s.createdAt = 0
	s.updatedAt = 0
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Version returns the current snapshot version (monotonically increasing).
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns the entry at path, if present.
func (s *Store) Get(path string) (FileEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// Put inserts or updates an entry, removing its prior keyword associations
// first, and bumps the snapshot version.
func (s *Store) Put(entry FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeKeywordsLocked(entry.Path)
	s.entries[entry.Path] = entry
	for _, kw := range entry.Keywords {
		set, ok := s.keywordIndex[kw]
		if !ok {
			set = make(map[string]struct{})
			s.keywordIndex[kw] = set
		}
		set[entry.Path] = struct{}{}
	}
	s.bumpVersionLocked()
}

// Remove deletes the entry at path, if present, and bumps the snapshot
// version.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; !ok {
		return
	}
	s.removeKeywordsLocked(path)
	delete(s.entries, path)
	s.bumpVersionLocked()
}

func (s *Store) removeKeywordsLocked(path string) {
	old, ok := s.entries[path]
	if !ok {
		return
	}
	for _, kw := range old.Keywords {
		if set, ok := s.keywordIndex[kw]; ok {
			delete(set, path)
			if len(set) == 0 {
				delete(s.keywordIndex, kw)
			}
		}
	}
}

func (s *Store) bumpVersionLocked() {
	s.version++
	now := time.Now().UnixMilli()
	if s.createdAt == 0 {
		s.createdAt = now
	}
	s.updatedAt = now
}

// QueryByKeywords returns the union of paths indexed under any of tokens.
func (s *Store) QueryByKeywords(tokens []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tok := range tokens {
		for p := range s.keywordIndex[tok] {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a read-only point-in-time copy of all entries, keyed by
// path. Callers observe the snapshot as of this call.
func (s *Store) Snapshot() map[string]FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]FileEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Prune removes every entry whose path is not in keepPaths.
func (s *Store) Prune(keepPaths map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path := range s.entries {
		if _, ok := keepPaths[path]; !ok {
			s.removeKeywordsLocked(path)
			delete(s.entries, path)
		}
	}
	s.bumpVersionLocked()
}

// Persist atomically writes the snapshot to disk via write-temp-then-rename,
// guarded by a cross-process file lock.
func (s *Store) Persist() error {
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire index store lock: %w", err)
	}
	defer func() { _ = s.fileLock.Unlock() }()

	s.mu.RLock()
	doc := s.documentLocked()
	s.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal index snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp index snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename index snapshot into place: %w", err)
	}

	if info, statErr := os.Stat(s.path); statErr == nil {
		s.watchMu.Lock()
		s.lastSelfWriteT = info.ModTime()
		s.watchMu.Unlock()
	}
	return nil
}

func (s *Store) documentLocked() document {
	entries := make([]FileEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	kwEntries := make([]keywordEntry, 0, len(s.keywordIndex))
	for tok, set := range s.keywordIndex {
		paths := make([]string, 0, len(set))
		for p := range set {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		kwEntries = append(kwEntries, keywordEntry{Token: tok, Paths: paths})
	}
	sort.Slice(kwEntries, func(i, j int) bool { return kwEntries[i].Token < kwEntries[j].Token })

	return document{
		Version:      currentSchemaVersion,
		Root:         s.root,
		SnapVersion:  s.version,
		Entries:      entries,
		KeywordIndex: kwEntries,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
}

// WatchForTampering starts an fsnotify watch on the snapshot file and its
// directory. If the file changes without a matching self-write, Tampered
// begins reporting true. The returned stop function closes the watcher.
func (s *Store) WatchForTampering() (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start index tamper watch: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch index root: %w", err)
	}

	s.watchMu.Lock()
	s.watcher = watcher
	s.watchMu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.checkTamper()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}

func (s *Store) checkTamper() {
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if !info.ModTime().Equal(s.lastSelfWriteT) {
		s.tampered = true
	}
}

// Tampered reports whether an external process has modified the snapshot
// file since this Store last wrote it.
func (s *Store) Tampered() bool {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return s.tampered
}

// Reload discards the in-memory snapshot and reloads from disk, clearing
// the tampered flag.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	s.watchMu.Lock()
	s.tampered = false
	s.watchMu.Unlock()
	return nil
}
