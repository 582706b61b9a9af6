package build

import (
	"runtime"

	"github.com/forgebuild/forge/src/core"
)

// waitForStage blocks the calling goroutine until op's slot settles at or
// past want, parking on OpState.Park whenever the slot is StageBusy and
// yielding via runtime.Gosched otherwise (the slot may be mid-lifecycle —
// e.g. StageTouched or StageApplied while a follower wants StageExecuted —
// without yet being flagged busy, since the owning goroutine hasn't made
// its next CAS yet). This is the single waiting primitive both Match's
// park loop and Execute's "not the one who runs the recipe" followers use,
// so a goroutine parked here still participates in the caller's
// sched.Pool the way spec §4.C's wait_guard requires: it isn't blocked in
// a syscall, just spinning/parking in Go-scheduled code.
func waitForStage(op *core.OpState, want core.Stage) core.Stage {
	for {
		cur := op.Load()
		if cur == core.StageBusy {
			cur = op.Park()
		}
		if cur != core.StageBusy && cur >= want {
			return cur
		}
		runtime.Gosched()
	}
}
