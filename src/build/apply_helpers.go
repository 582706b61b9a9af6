package build

import (
	"sync"

	"github.com/forgebuild/forge/src/core"
)

// PrerequisiteSpec is one prerequisite a rule's Apply wants matched, with
// the flags that control how execute later treats it (spec §3
// PrerequisiteEntry, §4.D unmatch, §4.E adhoc/include_unmatch).
type PrerequisiteSpec struct {
	Target   *core.Target
	Unmatch  UnmatchMode
	Optional bool
	Adhoc    bool
}

// MatchPrerequisites concurrently matches every spec in specs (spec §4.D
// step 3: "start asynchronous matching of each prerequisite target via the
// scheduler, using wait_guard to join them"), then builds and installs the
// resulting PrerequisiteList on target via SetPrerequisitesOnce (spec §3
// "single-producer: the first writer wins"). Entries whose match used
// UnmatchSafe are still matched fully (so their metadata is available) but
// are flagged Unmatched so execute skips them (spec §4.D "the prerequisite
// entry is cleared (its target moved into a side data slot)").
//
// Returns the installed list (which may belong to an earlier, racing
// writer rather than this call's own specs) and the aggregate match error,
// if any spec's optional flag doesn't excuse a failure.
func MatchPrerequisites(eng *Engine, actionID int, action core.Action, target *core.Target, specs []PrerequisiteSpec) (*core.PrerequisiteList, error) {
	entries := make([]core.PrerequisiteEntry, len(specs))
	var mu sync.Mutex
	var errs []error

	wg := eng.newWaitGuard()
	for i, spec := range specs {
		i, spec := i, spec
		wg.Go(func() error {
			err := MatchPrerequisite(eng, actionID, action, spec.Target, spec.Unmatch)
			entries[i] = core.PrerequisiteEntry{
				Target:    spec.Target,
				Optional:  spec.Optional,
				Adhoc:     spec.Adhoc,
				Unmatched: spec.Unmatch == UnmatchSafe,
			}
			if err != nil && !spec.Optional {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, core.AggregateErrors(errs...)
	}

	list := target.SetPrerequisitesOnce(&core.PrerequisiteList{Entries: entries})
	return list, nil
}
