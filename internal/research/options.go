package research

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/selector"
	"github.com/AntoineDubuc/theodore/internal/urlnorm"
)

// Timeouts are the per-phase deadlines the coordinator enforces. A
// phase timeout fails that phase only; whether the run continues
// depends on the phase's failure policy.
type Timeouts struct {
	Discovery   time.Duration
	Selection   time.Duration
	Extraction  time.Duration
	Aggregation time.Duration
	Persistence time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Discovery <= 0 {
		t.Discovery = 60 * time.Second
	}
	if t.Selection <= 0 {
		t.Selection = 120 * time.Second
	}
	if t.Extraction <= 0 {
		t.Extraction = 180 * time.Second
	}
	if t.Aggregation <= 0 {
		t.Aggregation = 120 * time.Second
	}
	if t.Persistence <= 0 {
		t.Persistence = 30 * time.Second
	}
	return t
}

// Config tunes the coordinator across runs.
type Config struct {
	Discovery discovery.Limits
	Selection selector.Options
	// MaxPages caps how many pages one run extracts.
	MaxPages int
	Timeouts Timeouts
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	c.Timeouts = c.Timeouts.withDefaults()
	return c
}

// Options tunes one run.
type Options struct {
	// MaxPages overrides Config.MaxPages when positive.
	MaxPages int
	// NoCache skips the crawl-cache lookup; the crawl still refreshes
	// the cache afterwards.
	NoCache bool
	// JobID is an externally supplied progress-job id; empty mints one.
	JobID string
}

// NormalizeSeed canonicalizes a user-supplied seed URL, defaulting the
// scheme to https.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("research: empty seed url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return urlnorm.Normalize(raw, nil)
}
