package compile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/src/depdb"
)

// UpdateFunc brings one discovered header target up to date and reports
// whether doing so changed it (spec §4.G step 5's "custom fast updater"
// and step 6's per-header update during cache/compile phase). Supplied by
// the compile Rule, which implements it against the real match/execute
// engine; extract.go itself only depends on this narrow signature so it
// can be tested against a fake.
type UpdateFunc func(ctx context.Context, resolvedPath string) (changed bool, err error)

// HeaderResolver turns a path reported by a toolchain's dependency output
// into the absolute, realpath-normalized path that identifies its target,
// implementing spec §4.G's "enter_header".
type HeaderResolver struct {
	srcDir   string
	prefix   *PrefixMap
	realpath *RealpathCache
	exists   func(string) bool
}

// NewHeaderResolver returns a resolver for headers reported while
// compiling a source that lives in srcDir, using prefix to resolve
// relative (-MG-reported, not-yet-generated) paths.
func NewHeaderResolver(srcDir string, prefix *PrefixMap, realpath *RealpathCache) *HeaderResolver {
	return &HeaderResolver{srcDir: srcDir, prefix: prefix, realpath: realpath, exists: exists}
}

// Resolve implements the two cases spec §4.G's "enter_header" describes.
func (h *HeaderResolver) Resolve(reported string) (string, error) {
	if filepath.IsAbs(reported) {
		resolved, err := h.realpath.Resolve(reported)
		if err != nil {
			// The realpath call itself can fail for a path that doesn't
			// exist yet (a generated header reported with an absolute
			// path by a toolchain that already knows its own out dir);
			// fall back to the cleaned, unresolved form rather than
			// treating this as fatal.
			return filepath.Clean(reported), nil
		}
		return resolved, nil
	}
	return h.prefix.Resolve(reported, h.srcDir, h.exists), nil
}

// extractorState is the cache/compile phase indicator spec §4.G's state
// machine diagram names.
type extractorState int

const (
	statePhaseCache extractorState = iota
	statePhaseCompile
	statePhaseDone
	statePhaseFail
)

// Extractor runs spec §4.G's inject(): the header-extraction engine with
// restart. One Extractor is constructed per compile-rule invocation.
type Extractor struct {
	chain     *depdb.Chain
	db        *depdb.Depdb
	toolchain Toolchain
	resolver  *HeaderResolver
	update    UpdateFunc
	binary    string
	baseOpts  []string
	src       string
	workDir   string

	lastResolved string // scratch: set by cacheStep, consumed by Inject's loop
}

// NewExtractor builds an Extractor for one compile invocation: binary and
// baseOpts drive the compiler, src is the source file, workDir is the
// directory the compiler runs in (used to make relative dep-file writes
// resolvable).
func NewExtractor(chain *depdb.Chain, db *depdb.Depdb, toolchain Toolchain, resolver *HeaderResolver, update UpdateFunc, binary string, baseOpts []string, src, workDir string) *Extractor {
	return &Extractor{
		chain:     chain,
		db:        db,
		toolchain: toolchain,
		resolver:  resolver,
		update:    update,
		binary:    binary,
		baseOpts:  baseOpts,
		src:       src,
		workDir:   workDir,
	}
}

// Inject runs the extractor to completion (including any restarts),
// returning whether any header's content changed during the process
// (which forces the caller's "update" flag, per spec §4.G step 6) and the
// resolved prerequisite targets discovered, in order.
func (e *Extractor) Inject(ctx context.Context) (changed bool, targets []string, err error) {
	// spec §4.G state diagram: "[start] --depdb readable?--> [cache]".
	// A depdb already in writing mode when Inject starts (a fresh file,
	// or an earlier invalidation-chain step already forcing a rewrite)
	// has no stored header lines to replay, so extraction begins
	// straight in the compile phase.
	state := statePhaseCache
	if e.db.Mode() != depdb.ModeReading {
		state = statePhaseCompile
	}
	skipCount := 0

	for {
		switch state {
		case statePhaseCache:
			cacheChanged, done, cerr := e.cacheStep()
			if cerr != nil {
				return false, targets, cerr
			}
			if done {
				return changed, targets, nil
			}
			targets = append(targets, e.lastResolved)
			if cacheChanged {
				changed = true
				state = statePhaseCompile
				continue
			}
			skipCount++
		case statePhaseCompile:
			headers, restart, cerr := e.compileStep(ctx, skipCount)
			if cerr != nil {
				return false, targets, cerr
			}
			for _, h := range headers {
				resolved, rerr := e.resolver.Resolve(h)
				if rerr != nil {
					return false, targets, rerr
				}
				if err := e.chain.Path(resolved); err != nil {
					return false, targets, err
				}
				hdrChanged, uerr := e.update(ctx, resolved)
				if uerr != nil {
					return false, targets, uerr
				}
				targets = append(targets, resolved)
				skipCount++
				if hdrChanged {
					changed = true
				}
			}
			if restart {
				continue
			}
			return changed, targets, nil
		}
	}
}

// cacheStep consumes one stored header line from depdb (spec §4.G's cache
// phase): resolve it, update it, and report whether that update changed
// it. done is true once the stored chain is exhausted (EOF, [done] per the
// state diagram).
func (e *Extractor) cacheStep() (changed bool, done bool, err error) {
	if e.db.Mode() != depdb.ModeReading {
		return false, true, nil
	}
	stored, ok := e.db.NextStored()
	if !ok {
		return false, true, nil
	}
	resolved, err := e.resolver.Resolve(stored)
	if err != nil {
		return false, false, err
	}
	hdrChanged, err := e.update(context.Background(), resolved)
	if err != nil {
		return false, false, err
	}
	e.lastResolved = resolved
	if hdrChanged {
		if err := e.db.ForceWrite(stored); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	e.db.Accept(stored)
	return false, false, nil
}

// compileStep spawns the compiler in dependency-extraction mode, parses
// its dependency output (the depfile if the compiler wrote one, otherwise
// the captured stdout/stderr), and returns the reported header paths past skipCount (the
// already-processed prefix retained across restarts, per spec §4.G's
// "Coroutine-like control flow" note). restart is true if the compiler's
// own non-fatal "missing include" diagnostic means headers it reported so
// far should be processed and extraction retried from scratch for the
// rest, per the restart rule.
func (e *Extractor) compileStep(ctx context.Context, skipCount int) (headers []string, restart bool, err error) {
	depfile := e.src + ".tmp.d"
	args := e.toolchain.Args(e.src, e.baseOpts, depfile)
	out, runErr := runOutput(ctx, e.workDir, e.binary, args)
	if runErr != nil {
		if path, ok := e.toolchain.MissingHeader(out); ok {
			// A missing-include failure is a "good error": the header
			// just hasn't been generated yet. Report it as a single
			// discovered (but unresolvable-yet) header so the caller's
			// update/match logic can generate it and the next restart
			// will see it.
			return []string{path}, true, nil
		}
		return nil, false, fmt.Errorf("compile failed for %s: %w\n%s", e.src, runErr, out)
	}
	depOut := []byte(out)
	if data, rerr := os.ReadFile(depfile); rerr == nil {
		// A toolchain that writes its dependency output to the depfile
		// (the GCC family, via -MF) leaves it there rather than on stdout.
		depOut = data
		_ = os.Remove(depfile)
	}
	all, perr := e.toolchain.ParseDeps(bytes.NewReader(depOut))
	if perr != nil {
		return nil, false, perr
	}
	if skipCount >= len(all) {
		return nil, false, nil
	}
	return all[skipCount:], false, nil
}
