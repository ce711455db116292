// Package pathguard normalizes and validates caller-supplied paths against a
// security policy before any I/O is attempted.
package pathguard

import (
	"path"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	lru "github.com/hashicorp/golang-lru/v2"

	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/gitignore"
)

// Operation classifies the intent a path is being validated for, since the
// extension/size checks only apply to certain purposes.
type Operation int

const (
	// OpRead covers read-like access: preview, metadata, verify_exists.
	OpRead Operation = iota
	// OpWrite covers create/append/overwrite/merge/patch and payload checks.
	OpWrite
	// OpOther covers list/find/organize/remove, where extension policy does
	// not apply.
	OpOther
)

// Policy is the subset of config.SecurityPolicy the guard enforces.
type Policy struct {
	Root                string
	AllowedExtensions   map[string]struct{}
	BlockedPathSegments []string
	MaxFileSize         int64
}

// Guard validates paths against a Policy, caching blocked-segment verdicts
// per relative path.
type Guard struct {
	policy  Policy
	blocked *gitignore.Matcher
	cache   *lru.Cache[string, string]
}

// New builds a Guard for policy. realpathCacheSize bounds the LRU cache of
// blocked-segment verdicts, keyed by relative path.
func New(policy Policy, realpathCacheSize int) (*Guard, error) {
	if realpathCacheSize <= 0 {
		realpathCacheSize = 512
	}
	cache, err := lru.New[string, string](realpathCacheSize)
	if err != nil {
		return nil, err
	}

	matcher := gitignore.New()
	for _, seg := range policy.BlockedPathSegments {
		seg = strings.ToLower(strings.TrimSpace(seg))
		if seg == "" {
			continue
		}
		matcher.AddPattern("**/" + seg)
		matcher.AddPattern("**/" + seg + "/**")
	}

	return &Guard{policy: policy, blocked: matcher, cache: cache}, nil
}

// Validated is the outcome of a successful Validate call.
type Validated struct {
	// RelativePath is canonical, forward-slashed, relative to Root.
	RelativePath string
	// AbsolutePath is the realpath-resolved absolute location.
	AbsolutePath string
}

// Validate normalizes inputPath, rejects traversal outside the root,
// checks blocked segments/extension/size policy for op, and returns the
// resolved absolute path.
func (g *Guard) Validate(inputPath string, op Operation, contentLen int64) (*Validated, error) {
	if inputPath == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPath, "path must not be empty", nil)
	}
	if strings.ContainsRune(inputPath, 0) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPath, "path contains a null byte", nil)
	}
	if hasWindowsDrivePrefix(inputPath) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPath, "drive-letter paths are not supported", nil)
	}

	normalized := normalizeSlashes(inputPath)
	if cleaned := path.Clean(normalized); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return nil, pkgerrors.New(pkgerrors.CodePathOutsideRoot, "path escapes the effective root", nil).
			WithDetail("path", inputPath)
	}

	resolved, err := securejoin.SecureJoin(g.policy.Root, normalized)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodePathOutsideRoot, "path escapes the effective root", err).
			WithDetail("path", inputPath)
	}

	rel, err := relativeTo(g.policy.Root, resolved)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodePathOutsideRoot, "path escapes the effective root", err).
			WithDetail("path", inputPath)
	}

	if g.isBlocked(rel) {
		return nil, pkgerrors.New(pkgerrors.CodeBlockedPath, "path matches a blocked segment", nil).
			WithDetail("path", rel)
	}

	if op != OpOther && len(g.policy.AllowedExtensions) > 0 {
		ext := extensionOf(rel)
		if _, ok := g.policy.AllowedExtensions[ext]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeDisallowedExtension, "extension is not allowed", nil).
				WithDetail("path", rel).WithDetail("extension", ext)
		}
	}

	if op == OpWrite && contentLen > g.policy.MaxFileSize {
		return nil, pkgerrors.New(pkgerrors.CodeFileTooLarge, "content exceeds max_file_size", nil).
			WithDetail("path", rel)
	}

	return &Validated{RelativePath: rel, AbsolutePath: resolved}, nil
}

func (g *Guard) isBlocked(relPath string) bool {
	if cached, ok := g.cache.Get(relPath); ok {
		return cached == "blocked"
	}
	blocked := g.blocked.Match(relPath, false)
	for _, part := range strings.Split(relPath, "/") {
		if blocked {
			break
		}
		if g.blocked.Match(part, true) {
			blocked = true
		}
	}
	if blocked {
		g.cache.Add(relPath, "blocked")
	} else {
		g.cache.Add(relPath, "clear")
	}
	return blocked
}

func extensionOf(relPath string) string {
	base := relPath
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

func normalizeSlashes(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "/")
}

func hasWindowsDrivePrefix(p string) bool {
	return len(p) >= 2 && p[1] == ':' && isASCIILetter(p[0])
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func relativeTo(root, resolved string) (string, error) {
	root = strings.TrimSuffix(normalizeSlashes2(root), "/")
	resolved = normalizeSlashes2(resolved)
	if resolved == root {
		return "", nil
	}
	prefix := root + "/"
	if !strings.HasPrefix(resolved, prefix) {
		return "", errEscapesRoot
	}
	return strings.TrimPrefix(resolved, prefix), nil
}

func normalizeSlashes2(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

var errEscapesRoot = pkgerrors.New(pkgerrors.CodePathOutsideRoot, "resolved path is not under root", nil)
