package engine

import "github.com/packfs/packfs/internal/recovery"

// Kind is the top-level intent family.
type Kind string

const (
	KindAccess   Kind = "access"
	KindUpdate   Kind = "update"
	KindDiscover Kind = "discover"
	KindOrganize Kind = "organize"
	KindRemove   Kind = "remove"
)

// Target carries whichever of path/pattern/semantic_query the call needs.
type Target struct {
	Path          string
	Pattern       string
	SemanticQuery string
}

// Options is the per-call options bag carried on every intent.
type Options struct {
	WorkingDirectory string
	Encoding         string
	Recursive        bool
	CreatePath       bool
	Backup           bool
	MaxResults       int
	Threshold        float64
	IncludeMetadata  bool
	IncludeContent   bool
	PreviewLines     int
}

// Intent is one request to the engine. Purpose is validated against Kind
// at dispatch time.
type Intent struct {
	Kind        Kind
	Purpose     string
	Target      Target
	Source      Target
	Destination Target
	Content     []byte
	Options     Options
}

// FileDescriptor describes one file or directory in a Result.Files list.
type FileDescriptor struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"is_directory"`
	Size      int64  `json:"size_bytes"`
	ItemCount int    `json:"item_count,omitempty"`
	Score     float64 `json:"relevance_score,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
}

// Result is the flat record returned at the intent boundary: no operational
// datum is nested inside a key named "data".
type Result struct {
	Success bool `json:"success"`

	Content      string  `json:"content,omitempty"`
	Exists       *bool   `json:"exists,omitempty"`
	Created      *bool   `json:"created,omitempty"`
	Path         string  `json:"path,omitempty"`
	BytesWritten int     `json:"bytes_written,omitempty"`
	Files        []FileDescriptor `json:"files,omitempty"`
	TotalFound   int     `json:"total_found,omitempty"`
	SearchTimeMS int64   `json:"search_time_ms,omitempty"`
	Preview      string  `json:"preview,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	Error       string                 `json:"error,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Suggestions []recovery.Suggestion  `json:"suggestions,omitempty"`
}
