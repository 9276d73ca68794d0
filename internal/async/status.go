// Package async runs documentation pre-warming in the background while the
// server keeps answering requests.
package async

import (
	"sync"
	"time"
)

// Status is the overall pre-warm state.
type Status string

const (
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Stage is the current pre-warm phase.
type Stage string

const (
	StageListing  Stage = "listing"
	StageIndexing Stage = "indexing"
	StageSaving   Stage = "saving"
)

// ProgressSnapshot is an immutable copy of Progress.
type ProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	ReposTotal     int     `json:"repos_total"`
	ReposProcessed int     `json:"repos_processed"`
	ReposIndexed   int     `json:"repos_indexed"`
	Errors         int     `json:"errors"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks a pre-warm run. Safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	status         Status
	stage          Stage
	reposTotal     int
	reposProcessed int
	reposIndexed   int
	errors         int
	startTime      time.Time
	errorMessage   string
}

// NewProgress creates a tracker in the listing stage.
func NewProgress() *Progress {
	return &Progress{
		status:    StatusRunning,
		stage:     StageListing,
		startTime: time.Now(),
	}
}

// SetStage moves to stage and sets the repository total.
func (p *Progress) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.reposTotal = total
}

// SetProcessed records how many repositories are done.
func (p *Progress) SetProcessed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reposProcessed = n
}

// Update records final batch counters.
func (p *Progress) Update(processed, indexed, errors int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reposProcessed = processed
	p.reposIndexed = indexed
	p.errors = errors
}

// SetError marks the run failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the run complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsRunning reports whether the run is still in progress.
func (p *Progress) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusRunning
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.reposTotal > 0 {
		pct = float64(p.reposProcessed) / float64(p.reposTotal) * 100.0
	}

	return ProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		ReposTotal:     p.reposTotal,
		ReposProcessed: p.reposProcessed,
		ReposIndexed:   p.reposIndexed,
		Errors:         p.errors,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
