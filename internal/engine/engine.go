// Package engine implements the top-level Intent Executor: the state
// machine that validates, dispatches, executes, indexes, and assembles
// the flat result for every intent.
package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/packfs/packfs/internal/config"
	pkgerrors "github.com/packfs/packfs/internal/errors"
	"github.com/packfs/packfs/internal/indexer"
	"github.com/packfs/packfs/internal/indexstore"
	"github.com/packfs/packfs/internal/pathguard"
	"github.com/packfs/packfs/internal/ratelimit"
	"github.com/packfs/packfs/internal/recovery"
	"github.com/packfs/packfs/internal/workdir"
	"github.com/packfs/packfs/pkg/version"
)

// Engine is one instance per root per process; it holds no global mutable
// state, so multiple Engines over different roots never interfere.
type Engine struct {
	cfg     *config.Config
	guard   *pathguard.Guard
	store   *indexstore.Store
	indexer *indexer.Indexer
	recov   *recovery.Engine
	limiter *ratelimit.Limiter

	pathLocks sync.Map // map[string]*sync.Mutex, per canonical path

	stopTamperWatch func()
}

// New constructs an Engine rooted at cfg.Security.Root. It opens (or
// initializes) the Index Store but does not run the initial full index;
// call Initialize for that.
func New(cfg *config.Config) (*Engine, error) {
	guard, err := pathguard.New(policyFromConfig(cfg), 1024)
	if err != nil {
		return nil, err
	}

	store, err := indexstore.Open(cfg.Security.Root)
	if err != nil {
		return nil, err
	}

	idx := indexer.New(store, indexer.Options{
		MaxDepth:           cfg.Engine.MaxIndexDepth,
		MaxFileSize:        cfg.Security.MaxFileSize,
		ReadCapBytes:       cfg.Engine.ReadCapBytes,
		MaxKeywordsPerFile: cfg.Engine.MaxKeywordsPerFile,
		BlockedSegments:    cfg.Security.BlockedPathSegments,
	})

	e := &Engine{
		cfg:     cfg,
		guard:   guard,
		store:   store,
		indexer: idx,
		recov:   recovery.New(cfg.Security.Root, recovery.DefaultMaxSuggestions),
		limiter: ratelimit.New(rateLimitConfigFrom(cfg)),
	}

	if stop, err := store.WatchForTampering(); err == nil {
		e.stopTamperWatch = stop
	} else {
		os.Stderr.WriteString("packfs: index tamper watch disabled: " + err.Error() + "\n")
	}

	return e, nil
}

func policyFromConfig(cfg *config.Config) pathguard.Policy {
	var allowed map[string]struct{}
	if len(cfg.Security.AllowedExtensions) > 0 {
		allowed = make(map[string]struct{}, len(cfg.Security.AllowedExtensions))
		for _, ext := range cfg.Security.AllowedExtensions {
			allowed[ext] = struct{}{}
		}
	}
	return pathguard.Policy{
		Root:                cfg.Security.Root,
		AllowedExtensions:   allowed,
		BlockedPathSegments: cfg.Security.BlockedPathSegments,
		MaxFileSize:         cfg.Security.MaxFileSize,
	}
}

func rateLimitConfigFrom(cfg *config.Config) ratelimit.Config {
	if cfg.Security.RateLimit == nil {
		return ratelimit.Config{}
	}
	return ratelimit.Config{
		MaxRequests: cfg.Security.RateLimit.MaxRequests,
		Window:      time.Duration(cfg.Security.RateLimit.WindowMS) * time.Millisecond,
	}
}

func (e *Engine) resolveRoot(workingDirectory string) workdir.Resolution {
	return workdir.Resolve(workingDirectory, e.cfg.Security.Root)
}

func (e *Engine) guardFor(res workdir.Resolution) (*pathguard.Guard, error) {
	return workdir.GuardFor(res, policyFromConfig(e.cfg), e.guard, 256)
}

// Initialize runs the eager full index of the default root. Afterward the
// Indexer also runs lazily on write intents: a single path for file writes
// and removals, a full pass for directory-level mutations.
func (e *Engine) Initialize(ctx context.Context) (indexer.Stats, error) {
	return e.indexer.Index(ctx)
}

// Shutdown stops the index tamper watch and persists the in-memory
// snapshot one final time.
func (e *Engine) Shutdown() error {
	if e.stopTamperWatch != nil {
		e.stopTamperWatch()
		e.stopTamperWatch = nil
	}
	return e.store.Persist()
}

// lockPath returns the per-path advisory lock for key, creating it on
// first use.
func (e *Engine) lockPath(key string) *sync.Mutex {
	actual, _ := e.pathLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Execute runs the eight-stage pipeline (accept, rate-limit, validate,
// dispatch, execute, index, recover, assemble) for intent. It never panics
// or returns a Go error across the intent boundary; every fault becomes a
// structured Result.
func (e *Engine) Execute(ctx context.Context, intent Intent) Result {
	start := time.Now()
	traceID := uuid.NewString()

	// Accepted: rate-limit token, effective root.
	res := e.resolveRoot(intent.Options.WorkingDirectory)
	limitKey := ratelimit.Key(res.EffectiveRoot, targetKey(intent))
	if !e.limiter.Allow(limitKey, time.Now()) {
		return e.finish(intent, start, traceID, Result{}, pkgerrors.New(pkgerrors.CodeRateLimited, "rate limit exceeded for this target", nil))
	}

	guard, err := e.guardFor(res)
	if err != nil {
		return e.finish(intent, start, traceID, Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err))
	}

	if res.IsDefault && e.store.Tampered() {
		if err := e.store.Reload(); err != nil {
			return e.finish(intent, start, traceID, Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err))
		}
	}

	select {
	case <-ctx.Done():
		return e.finish(intent, start, traceID, Result{}, pkgerrors.New(pkgerrors.CodeCancelled, "cancelled before validation", ctx.Err()))
	default:
	}

	// Validated + Dispatched + Executed + Indexed, per intent kind.
	dispatchCtx := &dispatchContext{
		engine:     e,
		guard:      guard,
		res:        res,
		intent:     intent,
		ctx:        ctx,
	}

	var result Result
	switch intent.Kind {
	case KindAccess:
		result, err = dispatchCtx.access()
	case KindUpdate:
		result, err = dispatchCtx.update()
	case KindDiscover:
		result, err = dispatchCtx.discover()
	case KindOrganize:
		result, err = dispatchCtx.organize()
	case KindRemove:
		result, err = dispatchCtx.remove()
	default:
		err = pkgerrors.New(pkgerrors.CodeInvalidPath, "unrecognized intent kind", nil)
	}

	return e.finish(intent, start, traceID, result, err)
}

// finish implements the Assembled/Recovered/Returned stages common to
// every purpose: attach telemetry, and on failure or empty discovery,
// consult the Error-Recovery Engine.
func (e *Engine) finish(intent Intent, start time.Time, traceID string, result Result, err error) Result {
	if err != nil {
		result = Result{Success: false}
		result.Error = err.Error()
		result.Code = pkgerrors.Code(err)
		result.Suggestions = e.suggestionsFor(intent, result.Code)
	} else if intent.Kind == KindDiscover && result.TotalFound == 0 {
		result.Suggestions = recovery.SuggestEmptyDiscovery(queryText(intent), recovery.DefaultMaxSuggestions)
	}

	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata["execution_time_ms"] = time.Since(start).Milliseconds()
	result.Metadata["operation_type"] = string(intent.Kind) + "/" + intent.Purpose
	result.Metadata["trace_id"] = traceID
	result.Metadata["engine_version"] = version.Short()
	return result
}

func (e *Engine) suggestionsFor(intent Intent, code string) []recovery.Suggestion {
	if code != pkgerrors.CodeFileNotFound && code != pkgerrors.CodeParentNotFound {
		return nil
	}
	target := intent.Target.Path
	if target == "" {
		target = intent.Source.Path
	}
	if target == "" {
		return nil
	}
	return e.recov.SuggestFileNotFound(target)
}

func targetKey(intent Intent) string {
	if intent.Target.Path != "" {
		return intent.Target.Path
	}
	if intent.Target.Pattern != "" {
		return intent.Target.Pattern
	}
	return intent.Target.SemanticQuery
}

func queryText(intent Intent) string {
	if intent.Target.SemanticQuery != "" {
		return intent.Target.SemanticQuery
	}
	return intent.Target.Pattern
}
