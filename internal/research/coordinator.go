// Package research is the coordinator driving one company research run
// through its phases: discovery, selection, extraction, aggregation,
// and persistence. Each phase has a deadline and a failure policy;
// progress is published through the job bus.
package research

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/aggregator"
	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/progress"
	"github.com/AntoineDubuc/theodore/internal/selector"
)

// Session is the run's shared browser session. Discovery and extraction
// render through the same session; per-URL browser instantiation is
// forbidden.
type Session interface {
	Render(ctx context.Context, rawURL string) (*fetcher.FetchResult, error)
	Close()
}

// Discoverer enumerates a site's URL surface.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string, limits discovery.Limits) (*model.DiscoverySet, error)
}

// PageSelector ranks discovered URLs for extraction value.
type PageSelector interface {
	Select(ctx context.Context, set *model.DiscoverySet, companyName string, kTarget int, opts selector.Options) selector.Result
}

// PageExtractor fetches selected URLs into page content.
type PageExtractor interface {
	Extract(ctx context.Context, urls []string) []model.PageContent
}

// IntelAggregator turns page content into a partial company record.
type IntelAggregator interface {
	Aggregate(ctx context.Context, pages []model.PageContent, companyName, seedURL string) (*aggregator.Result, error)
}

// RecordEmbedder produces the record's similarity vector.
type RecordEmbedder interface {
	Embed(ctx context.Context, record *model.CompanyRecord) ([]float32, error)
}

// RecordStore persists finished records.
type RecordStore interface {
	Upsert(ctx context.Context, record *model.CompanyRecord) error
}

// SiteCache is the crawl cache consulted before discovery.
type SiteCache interface {
	Get(siteURL string) (*model.CachedSite, bool, error)
	Put(siteURL string, pages []model.PageContent) error
}

// CallObserver is the slice of the LLM gateway the coordinator uses to
// attribute calls to the running job.
type CallObserver interface {
	SetObserver(fn func(llm.Call))
}

// Deps wires the coordinator's collaborators. OpenSession, Discoverer,
// and Extractor are factories because the browser session is created
// per run; Embedder, Cache, and Gateway are optional.
type Deps struct {
	OpenSession func(ctx context.Context) (Session, error)
	Discoverer  func(s Session) Discoverer
	Extractor   func(s Session) PageExtractor
	Selector    PageSelector
	Aggregator  IntelAggregator
	Embedder    RecordEmbedder
	Store       RecordStore
	Cache       SiteCache
	Gateway     CallObserver
	Bus         *progress.Bus
}

// Coordinator runs the research pipeline. Safe for sequential runs; a
// run owns its browser session exclusively.
type Coordinator struct {
	cfg  Config
	deps Deps
}

// New validates the wiring and creates a coordinator.
func New(cfg Config, deps Deps) (*Coordinator, error) {
	switch {
	case deps.OpenSession == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no session factory")
	case deps.Discoverer == nil || deps.Extractor == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no discoverer or extractor factory")
	case deps.Selector == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no selector")
	case deps.Aggregator == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no aggregator")
	case deps.Store == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no store")
	case deps.Bus == nil:
		return nil, eris.Wrap(errs.ErrConfig, "research: no progress bus")
	}
	return &Coordinator{cfg: cfg.withDefaults(), deps: deps}, nil
}

// Research runs the full pipeline for one company. Pipeline failures do
// not surface as errors: the returned record carries scrape_status and
// scrape_error, and the job log carries the detail. The error return is
// reserved for runs that never start.
func (c *Coordinator) Research(ctx context.Context, companyName, seedURL string, opts Options) (*model.CompanyRecord, error) {
	seed, err := NormalizeSeed(seedURL)
	if err != nil {
		return nil, eris.Wrap(errs.ErrConfig, "research: seed url: "+err.Error())
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}

	start := time.Now()
	record := &model.CompanyRecord{
		Name:         companyName,
		Website:      seed,
		CreatedAt:    start.UTC(),
		ScrapeStatus: model.ScrapeStatusFailed,
	}

	jobID := c.deps.Bus.StartJob(companyName, opts.JobID)
	log := zap.L().With(
		zap.String("company", companyName),
		zap.String("seed", seed),
		zap.String("job_id", jobID),
	)
	log.Info("research: run started")

	if c.deps.Gateway != nil {
		c.deps.Gateway.SetObserver(func(call llm.Call) {
			c.deps.Bus.RecordLLMCall(jobID, call.Model, call.PromptSize, call.ResponseSize, call.Usage)
		})
		defer c.deps.Gateway.SetObserver(func(llm.Call) {})
	}

	state := model.RunStateInit
	setState := func(next model.RunState) {
		state = next
		log.Debug("research: state change", zap.String("state", string(state)))
	}

	finish := func() {
		record.LastUpdated = time.Now().UTC()
		record.CrawlDurationMS = time.Since(start).Milliseconds()
	}

	fail := func(msg string) *model.CompanyRecord {
		if ctx.Err() != nil {
			msg = "cancelled"
		}
		setState(model.RunStateFailed)
		record.ScrapeStatus = model.ScrapeStatusFailed
		record.ScrapeError = msg
		finish()
		c.deps.Bus.CompleteJob(jobID, false, c.summaryLine(jobID), msg)
		log.Error("research: run failed", zap.String("reason", msg))
		return record
	}

	// runPhase records the phase around fn. The returned error is fn's;
	// the caller decides whether it ends the run.
	runPhase := func(name string, timeout time.Duration, fn func(ctx context.Context) (map[string]any, error)) error {
		c.deps.Bus.UpdatePhase(jobID, name, model.PhaseStatusRunning, nil)

		pctx := ctx
		cancel := func() {}
		if timeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, timeout)
		}
		phaseStart := time.Now()
		details, phaseErr := fn(pctx)
		cancel()

		if details == nil {
			details = map[string]any{}
		}
		details["duration_ms"] = time.Since(phaseStart).Milliseconds()

		if phaseErr != nil {
			details["error"] = phaseErr.Error()
			c.deps.Bus.UpdatePhase(jobID, name, model.PhaseStatusFailed, details)
			log.Warn("research: phase failed", zap.String("phase", name), zap.Error(phaseErr))
			return phaseErr
		}
		c.deps.Bus.UpdatePhase(jobID, name, model.PhaseStatusCompleted, details)
		log.Info("research: phase complete", zap.String("phase", name))
		return nil
	}

	var pages []model.PageContent
	cached := false

	if c.deps.Cache != nil && !opts.NoCache {
		_ = runPhase(model.PhaseCacheLookup, 0, func(context.Context) (map[string]any, error) {
			site, hit, cerr := c.deps.Cache.Get(seed)
			if cerr != nil {
				return nil, cerr
			}
			if !hit {
				return map[string]any{"hit": false}, nil
			}
			pages = site.Pages
			cached = true
			return map[string]any{
				"hit":        true,
				"pages":      len(site.Pages),
				"crawled_at": site.CrawledAt.Format(time.RFC3339),
			}, nil
		})
		if cached {
			c.deps.Bus.Log(jobID, fmt.Sprintf("cache hit for %s, skipping crawl (%d pages)", seed, len(pages)))
		}
	}

	if !cached {
		session, serr := c.deps.OpenSession(ctx)
		if serr != nil {
			return fail("browser session failed to start: " + serr.Error()), nil
		}
		defer session.Close()

		// Phase: discovery. Total failure ends the run.
		setState(model.RunStateDiscovering)
		var set *model.DiscoverySet
		derr := runPhase(model.PhaseDiscovery, c.cfg.Timeouts.Discovery, func(pctx context.Context) (map[string]any, error) {
			var dErr error
			set, dErr = c.deps.Discoverer(session).Discover(pctx, seed, c.cfg.Discovery)
			if dErr != nil {
				return nil, dErr
			}
			return map[string]any{"urls": set.Len(), "warnings": len(set.Warnings)}, nil
		})
		if derr != nil || set == nil || set.Len() == 0 {
			msg := "link discovery found no URLs"
			if derr != nil {
				msg += ": " + derr.Error()
			}
			return fail(msg), nil
		}

		// Phase: selection. An LLM failure records the phase failed but
		// the run proceeds on the heuristic picks.
		setState(model.RunStateSelecting)
		var sel selector.Result
		_ = runPhase(model.PhaseSelection, c.cfg.Timeouts.Selection, func(pctx context.Context) (map[string]any, error) {
			sel = c.deps.Selector.Select(pctx, set, companyName, maxPages, c.cfg.Selection)
			details := map[string]any{"method": sel.Method, "urls": len(sel.URLs)}
			if sel.LLMErr != nil {
				c.deps.Bus.Log(jobID, "page selection fell back to the keyword heuristic: "+sel.LLMErr.Error())
				return details, sel.LLMErr
			}
			return details, nil
		})
		if len(sel.URLs) == 0 {
			return fail("page selection produced no URLs"), nil
		}

		// Phase: extraction. Zero usable pages ends the run.
		setState(model.RunStateExtracting)
		eerr := runPhase(model.PhaseExtraction, c.cfg.Timeouts.Extraction, func(pctx context.Context) (map[string]any, error) {
			pages = c.deps.Extractor(session).Extract(pctx, sel.URLs)
			usable := 0
			for i, p := range pages {
				if p.IsEmpty() {
					continue
				}
				usable++
				c.deps.Bus.RecordPageScrape(jobID, p.URL, p.ByteSize, i+1, len(pages))
			}
			details := map[string]any{"requested": len(pages), "extracted": usable}
			if usable == 0 {
				return details, eris.New("every page failed extraction")
			}
			return details, nil
		})
		if eerr != nil {
			return fail("content extraction produced no usable pages"), nil
		}

		if c.deps.Cache != nil {
			if cerr := c.deps.Cache.Put(seed, pages); cerr != nil {
				log.Warn("research: cache write failed", zap.Error(cerr))
			}
		}
	}

	for _, p := range pages {
		if !p.IsEmpty() {
			record.PagesCrawled = append(record.PagesCrawled, p.URL)
		}
	}

	// Phase: aggregation plus embedding. A gateway failure with no text
	// ends the run; a degraded parse yields a partial record; an
	// embedding failure stores the record without a vector.
	setState(model.RunStateAggregating)
	var agg *aggregator.Result
	aerr := runPhase(model.PhaseAggregation, c.cfg.Timeouts.Aggregation, func(pctx context.Context) (map[string]any, error) {
		var aErr error
		agg, aErr = c.deps.Aggregator.Aggregate(pctx, pages, companyName, seed)
		if aErr != nil {
			return nil, aErr
		}

		intel := agg.Record
		intel.Name = record.Name
		intel.Website = record.Website
		intel.CreatedAt = record.CreatedAt
		intel.PagesCrawled = record.PagesCrawled
		record = intel

		details := map[string]any{
			"degraded":      agg.Degraded,
			"input_tokens":  agg.Usage.InputTokens,
			"output_tokens": agg.Usage.OutputTokens,
		}

		if c.deps.Embedder != nil {
			vec, vErr := c.deps.Embedder.Embed(pctx, record)
			if vErr != nil {
				details["embedded"] = false
				c.deps.Bus.Log(jobID, "embedding failed, record stored without a vector: "+vErr.Error())
				log.Warn("research: embedding failed", zap.Error(vErr))
			} else {
				record.Embedding = vec
				details["embedded"] = true
			}
		}
		return details, nil
	})
	if aerr != nil {
		return fail("intelligence generation failed: " + aerr.Error()), nil
	}

	switch {
	case agg.Degraded:
		record.ScrapeStatus = model.ScrapeStatusPartial
		record.ScrapeError = "structured extraction did not parse; summary holds the raw answer"
	case !record.HasIntelligence():
		record.ScrapeStatus = model.ScrapeStatusPartial
		record.ScrapeError = "extraction yielded little structured intelligence"
	default:
		record.ScrapeStatus = model.ScrapeStatusSuccess
	}

	// Phase: persistence. A storage failure fails the run, but the
	// in-memory record is still returned to the caller.
	setState(model.RunStatePersisting)
	perr := runPhase(model.PhasePersistence, c.cfg.Timeouts.Persistence, func(pctx context.Context) (map[string]any, error) {
		if sErr := c.deps.Store.Upsert(pctx, record); sErr != nil {
			return nil, sErr
		}
		return map[string]any{"id": record.ID}, nil
	})
	if perr != nil {
		return fail("persisting record failed: " + perr.Error()), nil
	}

	setState(model.RunStateDone)
	finish()
	summary := c.summaryLine(jobID)
	c.deps.Bus.Log(jobID, "run cost: "+summary)
	c.deps.Bus.CompleteJob(jobID, record.ScrapeStatus.Succeeded(), summary, record.ScrapeError)

	log.Info("research: run complete",
		zap.String("status", string(record.ScrapeStatus)),
		zap.String("id", record.ID),
		zap.Int("pages", len(record.PagesCrawled)),
		zap.Int64("duration_ms", record.CrawlDurationMS),
	)
	return record, nil
}

// summaryLine renders the job's counters as a one-line summary.
func (c *Coordinator) summaryLine(jobID string) string {
	job := c.deps.Bus.Get(jobID)
	if job == nil {
		return ""
	}
	return fmt.Sprintf("%d pages scraped, %d llm calls, %d tokens, $%.4f",
		job.PagesScraped, job.LLMCalls, job.TokenUsage.Total(), job.TokenUsage.Cost)
}
