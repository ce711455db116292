// Package indexstore is the on-disk plus in-memory catalog of indexed
// files: per-file metadata, keywords, and the inverted keyword index,
// persisted as a single JSON snapshot.
package indexstore

// FileEntry describes one indexed file or directory.
type FileEntry struct {
	Path        string   `json:"path"`
	SizeBytes   int64    `json:"size_bytes"`
	MtimeMS     int64    `json:"mtime_ms"`
	ContentHash string   `json:"content_hash"`
	Keywords    []string `json:"keywords"`
	Extension   string   `json:"extension"`
	IsDirectory bool     `json:"is_directory"`
}

// keywordEntry is the wire shape of one inverted-index row.
type keywordEntry struct {
	Token string   `json:"token"`
	Paths []string `json:"paths"`
}

// document is the on-disk schema of the index snapshot file.
type document struct {
	Version      int            `json:"version"`
	Root         string         `json:"root"`
	SnapVersion  int64          `json:"snapshot_version"`
	Entries      []FileEntry    `json:"entries"`
	KeywordIndex []keywordEntry `json:"keyword_index"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at"`
}

// currentSchemaVersion is the document schema version this build writes.
const currentSchemaVersion = 1
