package async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_InitialState(t *testing.T) {
	p := NewProgress()

	snap := p.Snapshot()
	assert.Equal(t, string(StatusRunning), snap.Status)
	assert.Equal(t, string(StageListing), snap.Stage)
	assert.True(t, p.IsRunning())
	assert.Zero(t, snap.ProgressPct)
}

func TestProgress_Percentage(t *testing.T) {
	p := NewProgress()

	p.SetStage(StageIndexing, 40)
	p.SetProcessed(10)

	snap := p.Snapshot()
	assert.Equal(t, string(StageIndexing), snap.Stage)
	assert.InDelta(t, 25.0, snap.ProgressPct, 0.001)
}

func TestProgress_ReadyAndError(t *testing.T) {
	ready := NewProgress()
	ready.Update(5, 3, 1)
	ready.SetReady()
	snap := ready.Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, 3, snap.ReposIndexed)
	assert.Equal(t, 1, snap.Errors)
	assert.False(t, ready.IsRunning())

	failed := NewProgress()
	failed.SetError("listing failed")
	snap = failed.Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "listing failed", snap.ErrorMessage)
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	p := NewProgress()
	p.SetStage(StageIndexing, 100)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			p.SetProcessed(n)
		}(i)
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Snapshot().ReposProcessed, 100)
}
