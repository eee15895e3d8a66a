// Package llm is the gateway every LLM call goes through: an ordered
// provider chain with fallback, a process-global token bucket, per-call
// deadlines, and structured-output parsing. The gateway owns provider
// selection; no other component inspects provider identity.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Options tunes one gateway call.
type Options struct {
	MaxTokens   int
	Temperature *float64
	// Timeout is the hard deadline for the whole call, fallback included.
	Timeout time.Duration
	// ExpectJSON makes the gateway strip code fences and validate the
	// response as JSON; invalid JSON reports as a parse error.
	ExpectJSON bool
}

// Result is the outcome of one successful gateway call.
type Result struct {
	Text     string
	JSON     []byte
	Provider string
	Model    string
	Usage    model.TokenUsage
}

// Call describes one provider attempt, for progress recording.
type Call struct {
	Provider     string
	Model        string
	PromptSize   int
	ResponseSize int
	Usage        model.TokenUsage
	Err          error
}

// Gateway serializes LLM calls through a token bucket and an ordered
// provider chain. Safe for concurrent use.
type Gateway struct {
	providers []Provider
	limiter   *rate.Limiter
	observer  func(Call)
}

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// rateLimitBackoff is the pause before re-trying a provider that
// signalled throttling, while the call deadline allows.
const rateLimitBackoff = 2 * time.Second

// NewGateway creates a gateway calling providers in the given order.
// The token bucket admits rpm requests per minute with the given burst
// capacity and is shared by all providers: the rpm budget counts calls,
// not vendors.
func NewGateway(rpm, burst int, providers ...Provider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, eris.Wrap(errs.ErrConfig, "llm: no providers configured")
	}
	if rpm < 1 {
		rpm = 8
	}
	if burst < rpm {
		burst = rpm
	}
	return &Gateway{
		providers: providers,
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		observer:  func(Call) {},
	}, nil
}

// SetObserver registers a callback invoked after every provider attempt.
// Used by the coordinator to record LLM calls in job progress.
func (g *Gateway) SetObserver(fn func(Call)) {
	if fn != nil {
		g.observer = fn
	}
}

// Generate runs one prompt through the provider chain. The primary is
// preferred; the fallback is attempted only when the primary fails with
// a timeout, transport, or quota error. Parse errors when ExpectJSON is
// set are reported distinctly and do not trigger fallback.
func (g *Gateway) Generate(ctx context.Context, system, prompt string, opts Options) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	deadline := time.Now().Add(opts.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(errs.ErrTimeout, "llm: waiting for rate limiter")
	}

	var lastErr error
	for i, p := range g.providers {
		// Providers still in the chain split the remaining budget evenly,
		// so a primary that hangs to its slice leaves the fallback time
		// to answer. Only the last attempt runs to the call deadline.
		attemptCtx, attemptDone := ctx, context.CancelFunc(func() {})
		if left := len(g.providers) - i; left > 1 {
			attemptCtx, attemptDone = context.WithTimeout(ctx, time.Until(deadline)/time.Duration(left))
		}
		resp, err := g.attempt(attemptCtx, p, system, prompt, opts)
		attemptDone()
		if err == nil {
			return g.finish(resp, opts)
		}
		lastErr = err

		if !shouldFallback(err) || ctx.Err() != nil {
			break
		}
		if i < len(g.providers)-1 {
			zap.L().Warn("llm: provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.String("kind", errs.Kind(err)),
				zap.Error(err),
			)
		}
	}

	if ctx.Err() != nil && !errors.Is(lastErr, errs.ErrTimeout) {
		return nil, eris.Wrap(errs.ErrTimeout, "llm: call deadline expired")
	}
	return nil, lastErr
}

// attempt runs a single provider, retrying transparently on throttling
// while the call deadline allows.
func (g *Gateway) attempt(ctx context.Context, p Provider, system, prompt string, opts Options) (*Response, error) {
	req := Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		JSON:        opts.ExpectJSON,
	}

	for {
		resp, err := p.Generate(ctx, req)

		call := Call{
			Provider:   p.Name(),
			PromptSize: len(system) + len(prompt),
			Err:        err,
		}
		if resp != nil {
			call.Model = resp.Model
			call.ResponseSize = len(resp.Text)
			call.Usage = resp.Usage
		}
		g.observer(call)

		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errs.ErrRateLimit) {
			return nil, err
		}

		// Throttled: retry within the deadline, otherwise report timeout.
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(errs.ErrTimeout, "llm: rate limited until deadline: "+p.Name())
		case <-time.After(rateLimitBackoff):
		}
	}
}

// finish validates structured output and assembles the result. A parse
// failure still returns the result so callers can degrade on the raw
// text; the error reports the parse kind.
func (g *Gateway) finish(resp *Response, opts Options) (*Result, error) {
	res := &Result{
		Text:     resp.Text,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage:    resp.Usage,
	}
	if opts.ExpectJSON {
		cleaned := CleanJSON(resp.Text)
		if !json.Valid([]byte(cleaned)) {
			return res, eris.Wrap(errs.ErrParse, "llm: response is not valid JSON")
		}
		res.JSON = []byte(cleaned)
	}
	return res, nil
}

// shouldFallback reports whether an error kind justifies trying the next
// provider. Parse errors never do: the next vendor will not fix a prompt
// the first one answered badly.
func shouldFallback(err error) bool {
	return errors.Is(err, errs.ErrTimeout) ||
		errors.Is(err, errs.ErrNetwork) ||
		errors.Is(err, errs.ErrRateLimit) ||
		errors.Is(err, errs.ErrProvider)
}
