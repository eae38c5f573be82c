// Package dividend runs the scrape, enrich and persist pipeline and answers
// reads from the cache.
package dividend

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/interfaces"
	"github.com/bobmcallan/dividendos/internal/models"
	"github.com/bobmcallan/dividendos/internal/services/extract"
)

// ErrNoRecords is reported when the listing page parses but yields no rows.
var ErrNoRecords = errors.New("listing page contained no dividend rows")

// Config holds the pipeline policies.
type Config struct {
	// TTL is how long a cached result stays fresh. Zero means a non-empty
	// cache never goes stale and only forced refreshes replace it.
	TTL time.Duration
	// SampleFallback serves the fixed sample calendar when the listing page
	// cannot be fetched or yields no rows.
	SampleFallback bool
}

// Service is the dividend orchestrator.
type Service struct {
	fetcher   interfaces.PageFetcher
	extractor interfaces.Extractor
	enricher  interfaces.Enricher
	cache     interfaces.CacheStore
	tracker   interfaces.JobTracker
	logger    *common.Logger
	config    Config
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires the orchestrator. Close must be called on shutdown to
// stop any running job.
func NewService(
	logger *common.Logger,
	fetcher interfaces.PageFetcher,
	extractor interfaces.Extractor,
	enricher interfaces.Enricher,
	cache interfaces.CacheStore,
	tracker interfaces.JobTracker,
	config Config,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		fetcher:   fetcher,
		extractor: extractor,
		enricher:  enricher,
		cache:     cache,
		tracker:   tracker,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		ctx:       ctx,
		cancel:    cancel,
	}
}

// GetDividends returns the cached calendar when it is fresh and force is
// false. Otherwise it refreshes synchronously, unless a job is already
// running, in which case the cached calendar is returned with Updating set.
// Refresh failures are reported in Error alongside whatever is cached.
func (s *Service) GetDividends(ctx context.Context, force bool) *models.DividendsResult {
	env := s.cache.Load()

	if !force && s.isFresh(env) {
		return &models.DividendsResult{
			Dividends:  env.Set(),
			LastUpdate: env.LastUpdate,
			FromCache:  true,
			Updating:   s.tracker.Read().Running,
		}
	}

	if !s.tracker.TryStart() {
		s.logger.Info().Msg("Refresh already running, serving cached dividends")
		return &models.DividendsResult{
			Dividends:  env.Set(),
			LastUpdate: env.LastUpdate,
			FromCache:  true,
			Updating:   true,
		}
	}

	// The job outlives the request but not the service.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	defer cancel()

	set, ts, err := s.runJob(jobCtx)
	if err != nil {
		return &models.DividendsResult{
			Dividends:  env.Set(),
			LastUpdate: env.LastUpdate,
			FromCache:  true,
			Error:      err.Error(),
		}
	}
	return &models.DividendsResult{
		Dividends:  set,
		LastUpdate: &ts,
	}
}

// StartBackgroundUpdate starts a refresh in its own goroutine and returns
// immediately. A refresh already in progress is left untouched.
func (s *Service) StartBackgroundUpdate() *models.BackgroundUpdateResult {
	if !s.tracker.TryStart() {
		st := s.tracker.Read()
		return &models.BackgroundUpdateResult{
			AlreadyRunning: true,
			Progress:       st.ProgressPct,
			CurrentItem:    st.CurrentItem,
			Message:        "update already in progress",
		}
	}

	s.safeGo("dividend-refresh", func() {
		if _, _, err := s.runJob(s.ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Background dividend refresh failed")
		}
	})

	st := s.tracker.Read()
	return &models.BackgroundUpdateResult{
		Accepted:    true,
		Progress:    st.ProgressPct,
		CurrentItem: st.CurrentItem,
		Message:     "update started",
	}
}

// GetJobStatus returns the refresh job record.
func (s *Service) GetJobStatus() models.JobStatus {
	return s.tracker.Read()
}

// GetCacheInfo describes the cache file.
func (s *Service) GetCacheInfo() models.CacheInfo {
	return s.cache.Info()
}

// ClearCache deletes the cached calendar.
func (s *Service) ClearCache() bool {
	return s.cache.Clear()
}

// HasCachedData reports whether the cache holds any records.
func (s *Service) HasCachedData() bool {
	return !s.cache.Load().IsEmpty()
}

// Wait blocks until background jobs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels running jobs and waits for them to record their outcome.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) isFresh(env *models.CacheEnvelope) bool {
	if env.IsEmpty() {
		return false
	}
	if s.config.TTL <= 0 {
		return true
	}
	if env.LastUpdate == nil {
		return false
	}
	return common.IsFresh(*env.LastUpdate, s.config.TTL)
}

// runJob performs one refresh. The caller must already hold the job slot
// via TryStart; runJob always releases it through Complete or Fail.
func (s *Service) runJob(ctx context.Context) (set models.DividendSet, ts time.Time, err error) {
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in dividend refresh")
			err = fmt.Errorf("refresh panicked: %v", r)
			s.fail(err)
		}
	}()

	set, enriched, err := s.collect(ctx)
	if err != nil {
		s.fail(err)
		return models.DividendSet{}, time.Time{}, err
	}

	total := set.Len()
	if err := s.tracker.Start(total); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record job start")
	}
	s.logger.Info().
		Int("confirmed", len(set.Confirmed)).
		Int("forecast", len(set.Forecast)).
		Msg("Dividend refresh started")

	if !enriched {
		set.Confirmed = s.enricher.Enrich(ctx, set.Confirmed, 0, s.reportProgress)
		set.Forecast = s.enricher.Enrich(ctx, set.Forecast, len(set.Confirmed), s.reportProgress)
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("refresh cancelled: %w", ctx.Err())
		s.fail(err)
		return models.DividendSet{}, time.Time{}, err
	}
	s.reportProgress(total, "")

	ts = s.now()
	if !s.cache.Save(set, ts) {
		err = errors.New("failed to persist dividend cache")
		s.fail(err)
		return models.DividendSet{}, time.Time{}, err
	}

	if err := s.tracker.Complete(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record job completion")
	}
	s.logger.Info().
		Int("records", total).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Dividend refresh completed")
	return set, ts, nil
}

// collect fetches and extracts the listing. enriched is true when the sample
// calendar was substituted, which needs no detail pages.
func (s *Service) collect(ctx context.Context) (set models.DividendSet, enriched bool, err error) {
	markup, err := s.fetcher.FetchListing(ctx)
	if err == nil {
		set = s.extractor.Extract(markup)
		if set.Len() > 0 {
			return set, false, nil
		}
		err = ErrNoRecords
	} else {
		err = fmt.Errorf("fetch listing: %w", err)
	}

	if !s.config.SampleFallback {
		return models.DividendSet{}, false, err
	}
	s.logger.Warn().Err(err).Msg("Listing unavailable, serving sample dividend calendar")
	return extract.SampleSet(), true, nil
}

func (s *Service) reportProgress(done int, label string) {
	if err := s.tracker.ReportProgress(done, label); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record job progress")
	}
}

func (s *Service) fail(err error) {
	s.logger.Error().Err(err).Msg("Dividend refresh failed")
	if ferr := s.tracker.Fail(err.Error()); ferr != nil {
		s.logger.Warn().Err(ferr).Msg("Failed to record job failure")
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (s *Service) safeGo(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in dividend service goroutine")
			}
		}()
		fn()
	}()
}
