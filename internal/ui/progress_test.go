package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestTracker() (*ProgressTracker, *stepClock) {
	clock := &stepClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	return newProgressTracker(clock.Now), clock
}

func TestProgressTracker_InitialState(t *testing.T) {
	p, _ := newTestTracker()

	stats := p.Stats()

	assert.Equal(t, StageListing, stats.Stage)
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
}

func TestProgressTracker_ProgressFraction(t *testing.T) {
	// Given: a tracker indexing 200 repositories
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 200)

	// When: 50 are done
	p.Update(50, "group/a")

	// Then: progress is a quarter
	stats := p.Stats()
	assert.InDelta(t, 0.25, stats.Progress, 1e-9)
	assert.Equal(t, "group/a", stats.Repo)
}

func TestProgressTracker_ProgressCapsAtOne(t *testing.T) {
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 10)

	p.Update(15, "")

	assert.Equal(t, 1.0, p.Stats().Progress)
}

func TestProgressTracker_SpeedSampling(t *testing.T) {
	// Given: a tracker with a controllable clock
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)

	// When: 10 repositories complete over one second
	clock.Advance(time.Second)
	p.Update(10, "")

	// Then: current, average and peak speed are 10/s
	speed := p.Stats().Speed
	assert.InDelta(t, 10.0, speed.Current, 1e-9)
	assert.InDelta(t, 10.0, speed.Avg, 1e-9)
	assert.InDelta(t, 10.0, speed.Peak, 1e-9)

	// When: the next 5 take another second
	clock.Advance(time.Second)
	p.Update(15, "")

	// Then: the average is smoothed and the peak kept
	speed = p.Stats().Speed
	assert.InDelta(t, 5.0, speed.Current, 1e-9)
	assert.InDelta(t, 9.0, speed.Avg, 1e-9)
	assert.InDelta(t, 10.0, speed.Peak, 1e-9)
}

func TestProgressTracker_SpeedIgnoresRapidUpdates(t *testing.T) {
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)

	clock.Advance(100 * time.Millisecond)
	p.Update(5, "")

	assert.Zero(t, p.Stats().Speed.Current)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a quarter done after 10 seconds
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)
	clock.Advance(10 * time.Second)
	p.Update(25, "")

	// Then: 30 seconds remain
	assert.Equal(t, 30*time.Second, p.Stats().ETA)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 10)
	clock.Advance(time.Second)
	p.Update(5, "group/a")

	p.SetStage(StageSaving, 0)

	stats := p.Stats()
	assert.Equal(t, StageSaving, stats.Stage)
	assert.Zero(t, stats.Current)
	assert.Empty(t, stats.Repo)
	assert.Zero(t, stats.Speed.Current)
}

func TestProgressTracker_CountsErrorsAndWarnings(t *testing.T) {
	p, _ := newTestTracker()

	p.AddError(ErrorEvent{Err: errors.New("a")})
	p.AddError(ErrorEvent{Err: errors.New("b")})
	p.AddError(ErrorEvent{Err: errors.New("c"), IsWarn: true})

	stats := p.Stats()
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	p, clock := newTestTracker()
	clock.Advance(3 * time.Second)

	assert.Equal(t, 3*time.Second, p.Elapsed())
}

func TestProgressTracker_ConcurrentUpdates(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 1000)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				p.Update(i*100+j, "repo")
				_ = p.Stats()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, p.Stats().Total)
}

func TestSparkline_EmptyRendersBaseline(t *testing.T) {
	s := NewSparkline(5)

	assert.Equal(t, strings.Repeat("▁", 5), s.Render())
}

func TestSparkline_ScalesToPeak(t *testing.T) {
	// Given: samples 0, half and full
	s := NewSparkline(3)
	s.Add(0)
	s.Add(4)
	s.Add(8)

	// Then: lowest, middle and highest bars
	assert.Equal(t, "▁▄█", s.Render())
}

func TestSparkline_WrapsAndKeepsNewest(t *testing.T) {
	s := NewSparkline(2)
	s.Add(8)
	s.Add(1)
	s.Add(8)

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, "▁█", s.Render())
}

func TestSparkline_RenderWithWidthPadsLeft(t *testing.T) {
	s := NewSparkline(10)
	s.Add(8)

	out := s.RenderWithWidth(4)

	assert.Equal(t, 4, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "█"))
}

func TestSparkline_Clear(t *testing.T) {
	s := NewSparkline(3)
	s.Add(5)

	s.Clear()

	assert.Zero(t, s.Count())
	assert.Equal(t, "▁▁▁", s.Render())
}
