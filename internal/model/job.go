package model

import "time"

// JobStatus represents the state of a research job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PhaseStatus represents the state of one phase within a job.
type PhaseStatus string

const (
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
)

// Phase names recorded in job progress. The coordinator runs them in
// this order; Cache Lookup replaces Discovery through Extraction on a hit.
const (
	PhaseCacheLookup = "Cache Lookup"
	PhaseDiscovery   = "Link Discovery"
	PhaseSelection   = "Page Selection"
	PhaseExtraction  = "Content Extraction"
	PhaseAggregation = "Intelligence Generation"
	PhasePersistence = "Persistence"
)

// JobPhase is one phase entry in a job's progress. EndedAt is set once,
// when the phase leaves the running state, and never mutated after.
type JobPhase struct {
	Name      string         `json:"name"`
	Status    PhaseStatus    `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// LogEntry is one timestamped progress message.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// JobProgress is the per-run event log owned by the progress bus.
type JobProgress struct {
	JobID        string     `json:"job_id"`
	CompanyName  string     `json:"company_name"`
	Status       JobStatus  `json:"status"`
	Phases       []JobPhase `json:"phases"`
	Log          []LogEntry `json:"log"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	PagesScraped int        `json:"pages_scraped"`
	LLMCalls     int        `json:"llm_calls"`
	TokenUsage   TokenUsage `json:"token_usage"`
	Summary      string     `json:"summary,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Phase returns the named phase entry, or nil if the job never entered it.
func (j *JobProgress) Phase(name string) *JobPhase {
	for i := range j.Phases {
		if j.Phases[i].Name == name {
			return &j.Phases[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to readers while the bus keeps
// mutating the original.
func (j *JobProgress) Clone() *JobProgress {
	cp := *j
	cp.Phases = make([]JobPhase, len(j.Phases))
	for i, p := range j.Phases {
		cp.Phases[i] = p
		if p.EndedAt != nil {
			t := *p.EndedAt
			cp.Phases[i].EndedAt = &t
		}
		if p.Details != nil {
			d := make(map[string]any, len(p.Details))
			for k, v := range p.Details {
				d[k] = v
			}
			cp.Phases[i].Details = d
		}
	}
	cp.Log = make([]LogEntry, len(j.Log))
	copy(cp.Log, j.Log)
	if j.EndedAt != nil {
		t := *j.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
