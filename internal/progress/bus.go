// Package progress is the shared job-progress bus: every phase
// transition, log line, and counter lands here under one lock, and
// every mutation is flushed to a single JSON file so other processes
// can watch a run from outside.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Options bounds the bus's history and staleness policy.
type Options struct {
	// MaxJobs caps retained jobs; oldest completed jobs evict first.
	MaxJobs int
	// MaxLogLines caps per-job log entries, keeping the most recent.
	MaxLogLines int
	// StaleAfter is how long a running job may sit before a read sweeps
	// it to failed.
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxJobs <= 0 {
		o.MaxJobs = 50
	}
	if o.MaxLogLines < 50 {
		o.MaxLogLines = 100
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 15 * time.Minute
	}
	return o
}

// Bus tracks job progress. All methods are safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	path string
	opts Options

	jobs  map[string]*model.JobProgress
	order []string
}

// persistedState is the on-disk shape of the bus.
type persistedState struct {
	Jobs  map[string]*model.JobProgress `json:"jobs"`
	Order []string                      `json:"order"`
}

// NewBus opens the bus over the given file, loading any prior state.
// A missing or unreadable file starts empty; progress is observability,
// not a system of record.
func NewBus(path string, opts Options) (*Bus, error) {
	b := &Bus{
		path: path,
		opts: opts.withDefaults(),
		jobs: make(map[string]*model.JobProgress),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "progress: read state: "+err.Error())
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		zap.L().Warn("progress: state file corrupt, starting fresh", zap.String("path", path), zap.Error(err))
		return b, nil
	}
	if state.Jobs != nil {
		b.jobs = state.Jobs
	}
	b.order = state.Order
	return b, nil
}

// StartJob registers a new running job and returns its id. An empty
// jobID mints one; a caller-supplied id that is already taken gets a
// fresh id instead.
func (b *Bus) StartJob(companyName, jobID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := jobID
	if id == "" {
		id = uuid.New().String()
	} else if _, taken := b.jobs[id]; taken {
		zap.L().Warn("progress: job id already in use, minting a new one", zap.String("job_id", id))
		id = uuid.New().String()
	}
	b.jobs[id] = &model.JobProgress{
		JobID:       id,
		CompanyName: companyName,
		Status:      model.JobStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	b.order = append(b.order, id)
	b.evictLocked()
	b.persistLocked()
	return id
}

// UpdatePhase transitions the named phase. A phase that is not yet
// running gets a new entry; a terminal phase is never reopened, the
// transition starts a fresh entry instead.
func (b *Bus) UpdatePhase(jobID, name string, status model.PhaseStatus, details map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		zap.L().Warn("progress: update for unknown job", zap.String("job_id", jobID))
		return
	}

	now := time.Now().UTC()
	var phase *model.JobPhase
	for i := len(job.Phases) - 1; i >= 0; i-- {
		if job.Phases[i].Name == name {
			phase = &job.Phases[i]
			break
		}
	}

	if phase == nil || phase.EndedAt != nil {
		job.Phases = append(job.Phases, model.JobPhase{
			Name:      name,
			Status:    model.PhaseStatusRunning,
			StartedAt: now,
		})
		phase = &job.Phases[len(job.Phases)-1]
	}

	phase.Status = status
	if details != nil {
		phase.Details = details
	}
	if status != model.PhaseStatusRunning {
		phase.EndedAt = &now
	}
	b.persistLocked()
}

// Log appends a timestamped message to the job's log, dropping the
// oldest lines past the cap.
func (b *Bus) Log(jobID, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return
	}
	job.Log = append(job.Log, model.LogEntry{At: time.Now().UTC(), Message: message})
	if len(job.Log) > b.opts.MaxLogLines {
		job.Log = job.Log[len(job.Log)-b.opts.MaxLogLines:]
	}
	b.persistLocked()
}

// RecordPageScrape counts one fetched page and logs its position.
func (b *Bus) RecordPageScrape(jobID, url string, size, index, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return
	}
	job.PagesScraped++
	job.Log = append(job.Log, model.LogEntry{
		At:      time.Now().UTC(),
		Message: fmt.Sprintf("scraped %s (%d bytes, %d/%d)", url, size, index, total),
	})
	if len(job.Log) > b.opts.MaxLogLines {
		job.Log = job.Log[len(job.Log)-b.opts.MaxLogLines:]
	}
	b.persistLocked()
}

// RecordLLMCall counts one LLM attempt and its token usage.
func (b *Bus) RecordLLMCall(jobID string, modelName string, promptSize, responseSize int, usage model.TokenUsage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return
	}
	job.LLMCalls++
	job.TokenUsage.Add(usage)
	job.Log = append(job.Log, model.LogEntry{
		At:      time.Now().UTC(),
		Message: fmt.Sprintf("llm call #%d %s (prompt %d chars, response %d chars)", job.LLMCalls, modelName, promptSize, responseSize),
	})
	if len(job.Log) > b.opts.MaxLogLines {
		job.Log = job.Log[len(job.Log)-b.opts.MaxLogLines:]
	}
	b.persistLocked()
}

// CompleteJob closes the job. Completing an already-terminal job is a
// no-op.
func (b *Bus) CompleteJob(jobID string, success bool, summary string, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok || job.Status != model.JobStatusRunning {
		return
	}

	now := time.Now().UTC()
	if success {
		job.Status = model.JobStatusCompleted
	} else {
		job.Status = model.JobStatusFailed
	}
	job.EndedAt = &now
	job.Summary = summary
	job.Error = errMsg
	b.persistLocked()
}

// Get returns a deep copy of the job, or nil if unknown.
func (b *Bus) Get(jobID string) *model.JobProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweepLocked()

	job, ok := b.jobs[jobID]
	if !ok {
		return nil
	}
	return job.Clone()
}

// GetCurrent returns the most recently started job still running.
func (b *Bus) GetCurrent() *model.JobProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweepLocked()

	for i := len(b.order) - 1; i >= 0; i-- {
		if job := b.jobs[b.order[i]]; job != nil && job.Status == model.JobStatusRunning {
			return job.Clone()
		}
	}
	return nil
}

// GetAll returns copies of every retained job, oldest first.
func (b *Bus) GetAll() []*model.JobProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweepLocked()

	out := make([]*model.JobProgress, 0, len(b.order))
	for _, id := range b.order {
		if job := b.jobs[id]; job != nil {
			out = append(out, job.Clone())
		}
	}
	return out
}

// sweepLocked fails running jobs older than the staleness bound.
func (b *Bus) sweepLocked() {
	now := time.Now().UTC()
	swept := false
	for _, job := range b.jobs {
		if job.Status != model.JobStatusRunning {
			continue
		}
		if now.Sub(job.StartedAt) <= b.opts.StaleAfter {
			continue
		}
		ended := now
		job.Status = model.JobStatusFailed
		job.Error = "timed out"
		job.EndedAt = &ended
		swept = true
		zap.L().Warn("progress: swept stale job",
			zap.String("job_id", job.JobID),
			zap.String("company", job.CompanyName),
		)
	}
	if swept {
		b.persistLocked()
	}
}

// evictLocked enforces the history cap, dropping oldest terminal jobs
// first and oldest jobs of any state as a last resort.
func (b *Bus) evictLocked() {
	for len(b.order) > b.opts.MaxJobs {
		victim := -1
		for i, id := range b.order {
			if job := b.jobs[id]; job != nil && job.Status != model.JobStatusRunning {
				victim = i
				break
			}
		}
		if victim == -1 {
			victim = 0
		}
		delete(b.jobs, b.order[victim])
		b.order = append(b.order[:victim], b.order[victim+1:]...)
	}
}

// persistLocked writes the full state atomically: temp file in the same
// directory, fsync, rename. A persistence failure is logged, never
// propagated; progress must not take the pipeline down.
func (b *Bus) persistLocked() {
	state := persistedState{Jobs: b.jobs, Order: b.order}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		zap.L().Error("progress: marshal state", zap.Error(err))
		return
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zap.L().Error("progress: create state dir", zap.Error(err))
		return
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		zap.L().Error("progress: create temp state file", zap.Error(err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		zap.L().Error("progress: write state", zap.Error(err))
		return
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		zap.L().Error("progress: sync state", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		zap.L().Error("progress: close state", zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		zap.L().Error("progress: replace state file", zap.Error(err))
	}
}
