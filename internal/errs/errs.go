// Package errs defines the error kinds shared across the research
// pipeline. Each kind is a sentinel root; packages wrap the underlying
// cause with eris and callers classify with errors.Is.
package errs

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	// ErrConfig means required clients or options were missing at the
	// start of a run. Fatal; the run never starts.
	ErrConfig = eris.New("config error")

	// ErrNetwork is a transport failure during a fetch.
	ErrNetwork = eris.New("network error")

	// ErrTimeout means a deadline expired at the fetch, LLM, or phase level.
	ErrTimeout = eris.New("timeout")

	// ErrParse means an LLM returned unparseable JSON when structured
	// output was expected.
	ErrParse = eris.New("parse error")

	// ErrRateLimit is provider-signalled throttling.
	ErrRateLimit = eris.New("rate limited")

	// ErrProvider is a non-retryable provider failure.
	ErrProvider = eris.New("provider error")

	// ErrStorage is a vector-index or document-store failure.
	ErrStorage = eris.New("storage error")

	// ErrCancelled means the coordinator cancelled the run.
	ErrCancelled = eris.New("cancelled")
)

// Kind names the sentinel an error wraps, for log fields and summaries.
// Unclassified errors report as "error".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "error"
	}
}
