// Package workdir resolves the effective root for a single intent and
// keeps non-default roots isolated from the primary semantic index.
package workdir

import (
	"github.com/packfs/packfs/internal/pathguard"
)

// Resolution describes the root a call should operate against.
type Resolution struct {
	EffectiveRoot string
	IsDefault     bool
}

// Resolve implements `effective_root = intent.working_directory ??
// engine.default_root`.
func Resolve(workingDirectory, defaultRoot string) Resolution {
	if workingDirectory == "" || workingDirectory == defaultRoot {
		return Resolution{EffectiveRoot: defaultRoot, IsDefault: true}
	}
	return Resolution{EffectiveRoot: workingDirectory, IsDefault: false}
}

// GuardFor builds a Path Guard scoped to the resolution's effective root,
// carrying over the same security policy shape (allowed extensions,
// blocked segments, size caps) but re-rooted so containment is enforced
// against the effective root rather than the default root.
func GuardFor(res Resolution, basePolicy pathguard.Policy, defaultGuard *pathguard.Guard, realpathCacheSize int) (*pathguard.Guard, error) {
	if res.IsDefault {
		return defaultGuard, nil
	}

	policy := basePolicy
	policy.Root = res.EffectiveRoot
	return pathguard.New(policy, realpathCacheSize)
}
