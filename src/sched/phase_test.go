package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseLockJoinsSamePhaseConcurrently(t *testing.T) {
	pl := NewPhaseLock()
	t1 := pl.Acquire(PhaseMatch)
	t2 := pl.Acquire(PhaseMatch)
	assert.Equal(t, 2, pl.holders)
	t1.Release()
	t2.Release()
	assert.Equal(t, 0, pl.holders)
}

func TestPhaseLockBlocksDifferentPhaseUntilReleased(t *testing.T) {
	pl := NewPhaseLock()
	t1 := pl.Acquire(PhaseMatch)

	acquired := make(chan *Ticket, 1)
	go func() {
		acquired <- pl.Acquire(PhaseExecute)
	}()

	select {
	case <-acquired:
		t.Fatal("execute phase acquired while match phase still held")
	case <-time.After(50 * time.Millisecond):
	}

	t1.Release()

	select {
	case t2 := <-acquired:
		assert.Equal(t, PhaseExecute, t2.phase)
		t2.Release()
	case <-time.After(time.Second):
		t.Fatal("execute phase never acquired after match phase released")
	}
}

func TestTicketSwitchRestoresOriginalPhase(t *testing.T) {
	pl := NewPhaseLock()
	t1 := pl.Acquire(PhaseMatch)

	var ranInExecute bool
	err := t1.Switch(PhaseExecute, func() error {
		ranInExecute = pl.current == PhaseExecute
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ranInExecute)
	assert.Equal(t, PhaseMatch, t1.phase)
	assert.Equal(t, PhaseMatch, pl.current)

	t1.Release()
}

func TestTicketSwitchPropagatesFnError(t *testing.T) {
	pl := NewPhaseLock()
	t1 := pl.Acquire(PhaseMatch)
	sentinel := assert.AnError
	err := t1.Switch(PhaseExecute, func() error { return sentinel })
	assert.Equal(t, sentinel, err)
	t1.Release()
}

func TestPhaseStringRendersKnownPhases(t *testing.T) {
	assert.Equal(t, "load", PhaseLoad.String())
	assert.Equal(t, "match", PhaseMatch.String())
	assert.Equal(t, "execute", PhaseExecute.String())
}

func TestPhaseLockManyHoldersReleaseConcurrentlySafely(t *testing.T) {
	pl := NewPhaseLock()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := pl.Acquire(PhaseLoad)
			tk.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, pl.holders)
}
