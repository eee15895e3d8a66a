package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
)

func newTestBus(t *testing.T, opts Options) *Bus {
	t.Helper()
	b, err := NewBus(filepath.Join(t.TempDir(), "progress.json"), opts)
	require.NoError(t, err)
	return b
}

func TestBusStartAndGet(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})

	id := b.StartJob("Acme Robotics", "")
	require.NotEmpty(t, id)

	job := b.Get(id)
	require.NotNil(t, job)
	assert.Equal(t, "Acme Robotics", job.CompanyName)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.False(t, job.StartedAt.IsZero())

	assert.Nil(t, b.Get("nope"))
}

func TestBusStartJobSuppliedID(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})

	id := b.StartJob("Acme", "external-42")
	assert.Equal(t, "external-42", id)

	// A duplicate id is not honored; the job still starts.
	other := b.StartJob("Other", "external-42")
	assert.NotEqual(t, "external-42", other)
	assert.NotEmpty(t, other)
	assert.Equal(t, "Acme", b.Get("external-42").CompanyName)
}

func TestBusPhaseLifecycle(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")

	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusRunning, nil)
	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusCompleted, map[string]any{"links": 42})

	job := b.Get(id)
	phase := job.Phase(model.PhaseDiscovery)
	require.NotNil(t, phase)
	assert.Equal(t, model.PhaseStatusCompleted, phase.Status)
	require.NotNil(t, phase.EndedAt)
	assert.Equal(t, 42, phase.Details["links"])
}

func TestBusTerminalPhaseNotReopened(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")

	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusFailed, nil)
	firstEnd := *b.Get(id).Phases[0].EndedAt

	// A later transition with the same name starts a fresh entry.
	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusRunning, nil)

	job := b.Get(id)
	require.Len(t, job.Phases, 2)
	assert.Equal(t, firstEnd, *job.Phases[0].EndedAt, "ended phase is immutable")
	assert.Equal(t, model.PhaseStatusRunning, job.Phases[1].Status)
	assert.Nil(t, job.Phases[1].EndedAt)
}

func TestBusUnknownJobIsNoOp(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})

	b.UpdatePhase("ghost", model.PhaseDiscovery, model.PhaseStatusRunning, nil)
	b.Log("ghost", "hello")
	b.RecordPageScrape("ghost", "https://x.test", 1, 1, 1)
	b.CompleteJob("ghost", true, "", "")

	assert.Empty(t, b.GetAll())
}

func TestBusCounters(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")

	b.RecordPageScrape(id, "https://acme.test/about", 2048, 1, 3)
	b.RecordPageScrape(id, "https://acme.test/team", 1024, 2, 3)
	b.RecordLLMCall(id, "claude-sonnet", 500, 200, model.TokenUsage{InputTokens: 120, OutputTokens: 40, Cost: 0.01})
	b.RecordLLMCall(id, "claude-sonnet", 800, 300, model.TokenUsage{InputTokens: 200, OutputTokens: 60, Cost: 0.02})

	job := b.Get(id)
	assert.Equal(t, 2, job.PagesScraped)
	assert.Equal(t, 2, job.LLMCalls)
	assert.Equal(t, 320, job.TokenUsage.InputTokens)
	assert.Equal(t, 100, job.TokenUsage.OutputTokens)
	assert.InDelta(t, 0.03, job.TokenUsage.Cost, 1e-9)
	assert.NotEmpty(t, job.Log)
}

func TestBusLogCap(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{MaxLogLines: 50})
	id := b.StartJob("Acme", "")

	for i := 0; i < 60; i++ {
		b.Log(id, fmt.Sprintf("line %d", i))
	}

	job := b.Get(id)
	require.Len(t, job.Log, 50)
	assert.Equal(t, "line 10", job.Log[0].Message, "oldest lines dropped")
	assert.Equal(t, "line 59", job.Log[49].Message)
}

func TestBusCompleteJob(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")

	b.CompleteJob(id, true, "8 pages, 3 LLM calls", "")
	job := b.Get(id)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, "8 pages, 3 LLM calls", job.Summary)
	require.NotNil(t, job.EndedAt)

	// A second completion does not rewrite the outcome.
	b.CompleteJob(id, false, "", "boom")
	job = b.Get(id)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
}

func TestBusCompleteJobFailure(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")

	b.CompleteJob(id, false, "", "no usable content")
	job := b.Get(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "no usable content", job.Error)
}

func TestBusGetCurrent(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})

	assert.Nil(t, b.GetCurrent())

	first := b.StartJob("First", "")
	second := b.StartJob("Second", "")

	current := b.GetCurrent()
	require.NotNil(t, current)
	assert.Equal(t, second, current.JobID)

	b.CompleteJob(second, true, "", "")
	current = b.GetCurrent()
	require.NotNil(t, current)
	assert.Equal(t, first, current.JobID, "falls back to the older running job")

	b.CompleteJob(first, true, "", "")
	assert.Nil(t, b.GetCurrent())
}

func TestBusStaleSweep(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{StaleAfter: 10 * time.Millisecond})

	id := b.StartJob("Acme", "")
	time.Sleep(30 * time.Millisecond)

	job := b.Get(id)
	require.NotNil(t, job)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "timed out", job.Error)
	require.NotNil(t, job.EndedAt)
}

func TestBusEviction(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{MaxJobs: 3})

	running := b.StartJob("still running", "")
	done := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id := b.StartJob(fmt.Sprintf("done %d", i), "")
		b.CompleteJob(id, true, "", "")
		done = append(done, id)
	}

	all := b.GetAll()
	require.Len(t, all, 3)
	assert.NotNil(t, b.Get(running), "running job survives eviction")
	assert.Nil(t, b.Get(done[0]), "oldest terminal job evicted first")
	assert.NotNil(t, b.Get(done[1]))
	assert.NotNil(t, b.Get(done[2]))
}

func TestBusPersistenceRoundtrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "progress.json")

	b, err := NewBus(path, Options{})
	require.NoError(t, err)
	id := b.StartJob("Acme", "")
	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusCompleted, nil)
	b.CompleteJob(id, true, "done", "")

	reopened, err := NewBus(path, Options{})
	require.NoError(t, err)
	job := reopened.Get(id)
	require.NotNil(t, job)
	assert.Equal(t, "Acme", job.CompanyName)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Phase(model.PhaseDiscovery))
}

func TestBusCorruptStateStartsFresh(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	b, err := NewBus(path, Options{})
	require.NoError(t, err)
	assert.Empty(t, b.GetAll())
}

func TestBusReadersGetCopies(t *testing.T) {
	t.Parallel()
	b := newTestBus(t, Options{})
	id := b.StartJob("Acme", "")
	b.UpdatePhase(id, model.PhaseDiscovery, model.PhaseStatusRunning, map[string]any{"links": 1})

	snapshot := b.Get(id)
	snapshot.CompanyName = "mutated"
	snapshot.Phases[0].Details["links"] = 999

	fresh := b.Get(id)
	assert.Equal(t, "Acme", fresh.CompanyName)
	assert.Equal(t, 1, fresh.Phases[0].Details["links"])
}
