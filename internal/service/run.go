package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"content_ingester/internal/config"
	"content_ingester/internal/domain"
	"content_ingester/internal/normalize"
)

var ErrNoFetcher = errors.New("no fetcher for source kind")

// Deps are the collaborators of a RunService. Session, States and
// Publisher may be nil.
type Deps struct {
	Sources    SourceStore
	Fetchers   map[domain.SourceKind]Fetcher
	Session    SessionPreparer
	Normalizer *normalize.Normalizer
	Upserter   Upserter
	States     SourceStateStore
	Publisher  Publisher
}

type RunService struct {
	deps     Deps
	config   config.RunConfig
	timeouts map[domain.SourceKind]time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunService builds the orchestrator. timeouts bounds each fetch attempt
// per source kind; a missing entry means no extra bound.
func NewRunService(deps Deps, cfg config.RunConfig, timeouts map[domain.SourceKind]time.Duration, logger *slog.Logger) *RunService {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}

	return &RunService{
		deps:     deps,
		config:   cfg,
		timeouts: timeouts,
		logger:   logger.With("component", "run"),
		now:      time.Now,
	}
}

// Run performs one pass over all active sources. The returned error is
// non-nil only for fatal conditions (sources cannot be listed, or login
// failed); per-source failures are collected in the report.
func (s *RunService) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{
		StartedAt:        s.now().UTC(),
		Sources:          []domain.SourceStats{},
		ZeroYieldSources: []string{},
		Errors:           []string{},
	}

	if s.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Deadline)
		defer cancel()
	}

	sources, err := s.deps.Sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	s.logger.Info("starting run", "sources", len(sources))

	if s.deps.Session != nil && needsSession(sources) {
		if err := s.deps.Session.Prepare(ctx); err != nil {
			s.logger.Error("session preparation failed", "error", err)
			return nil, fmt.Errorf("prepare session: %w", err)
		}
	}

	var newest time.Time
	for i, src := range sources {
		if err := s.pause(ctx, i); err != nil {
			reason := fmt.Sprintf("run stopped before source started: %v", err)
			for _, rest := range sources[i:] {
				stats := domain.SourceStats{SourceID: rest.ID, Kind: rest.Kind, Err: reason}
				report.Sources = append(report.Sources, stats)
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", rest.ID, stats.Err))
				report.ZeroYieldSources = append(report.ZeroYieldSources, rest.ID)
			}
			s.logger.Warn("run stopped early", "skipped", len(sources)-i, "error", err)
			break
		}

		stats, items, errs := s.runSource(ctx, src)
		report.Sources = append(report.Sources, stats)
		report.Errors = append(report.Errors, errs...)
		report.TotalFetched += stats.Fetched
		report.TotalInserted += stats.Inserted
		report.TotalUpserted += stats.Upserted
		report.TotalErrored += stats.Errored
		if len(items) == 0 {
			report.ZeroYieldSources = append(report.ZeroYieldSources, src.ID)
		}
		for _, it := range items {
			if it.OccurredAt.After(newest) {
				newest = it.OccurredAt
			}
		}
	}

	finished := s.now()
	report.Duration = finished.Sub(report.StartedAt)
	if !newest.IsZero() {
		staleness := finished.Sub(newest).Minutes()
		report.NewestItemAt = &newest
		report.StalenessMinutes = &staleness
	}

	s.logger.Info("run completed",
		"fetched", report.TotalFetched,
		"inserted", report.TotalInserted,
		"upserted", report.TotalUpserted,
		"errored", report.TotalErrored,
		"zero_yield", len(report.ZeroYieldSources),
		"errors", len(report.Errors),
		"duration", report.Duration,
		"failed", report.Failed(),
	)

	return report, nil
}

func (s *RunService) runSource(ctx context.Context, src domain.Source) (domain.SourceStats, []domain.ContentItem, []string) {
	start := s.now()
	logger := s.logger.With("source", src.ID, "kind", src.Kind)
	stats := domain.SourceStats{SourceID: src.ID, Kind: src.Kind}
	var errs []string

	raws, err := s.fetchSource(ctx, src, logger)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		stats.Err = err.Error()
		stats.Duration = s.now().Sub(start)
		s.recordState(ctx, src, stats, logger)
		return stats, nil, []string{fmt.Sprintf("%s: %v", src.ID, err)}
	}

	items, dropped := s.deps.Normalizer.NormalizeAll(src, raws, s.now())
	stats.Fetched = len(raws)
	stats.Dropped = dropped

	if len(items) > 0 {
		res := s.deps.Upserter.Upsert(ctx, items)
		stats.Inserted = res.Inserted
		stats.Upserted = res.Updated
		stats.Errored = res.Failed
		for _, e := range res.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", src.ID, e))
		}
		if len(res.Errors) > 0 {
			stats.Err = res.Errors[0]
		}
		stats.Published = s.publish(ctx, items, res.Outcomes, logger)
	}

	stats.Duration = s.now().Sub(start)
	s.recordState(ctx, src, stats, logger)

	logger.Info("source completed",
		"fetched", stats.Fetched,
		"inserted", stats.Inserted,
		"upserted", stats.Upserted,
		"errored", stats.Errored,
		"dropped", stats.Dropped,
		"duration", stats.Duration,
	)

	return stats, items, errs
}

// fetchSource fetches with the kind's fetcher and, for authenticated
// sources, falls back to the public syndication path when enabled.
func (s *RunService) fetchSource(ctx context.Context, src domain.Source, logger *slog.Logger) ([]domain.RawItem, error) {
	fetcher, ok := s.deps.Fetchers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoFetcher, src.Kind)
	}

	raws, err := s.fetchWithRetry(ctx, fetcher, src, src.Kind, logger)
	if err == nil || src.Kind != domain.KindAuthenticatedSocial || !s.config.SyndicationFallback {
		return raws, err
	}

	fallback, ok := s.deps.Fetchers[domain.KindPublicSocial]
	if !ok || ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("authenticated fetch failed, trying syndication", "error", err)
	raws, fbErr := s.fetchWithRetry(ctx, fallback, src, domain.KindPublicSocial, logger)
	if fbErr != nil {
		return nil, fmt.Errorf("%w; syndication fallback: %w", err, fbErr)
	}
	return raws, nil
}

// fetchWithRetry retries only when the origin signals rate limiting.
func (s *RunService) fetchWithRetry(ctx context.Context, f Fetcher, src domain.Source, kind domain.SourceKind, logger *slog.Logger) ([]domain.RawItem, error) {
	var err error
	for attempt := 1; attempt <= s.config.Retry.MaxAttempts; attempt++ {
		var raws []domain.RawItem
		raws, err = s.fetchOnce(ctx, f, src, kind)
		if err == nil {
			return raws, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempt == s.config.Retry.MaxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		logger.Warn("rate limited, retrying",
			"attempt", attempt,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", err, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return nil, err
}

func (s *RunService) fetchOnce(ctx context.Context, f Fetcher, src domain.Source, kind domain.SourceKind) ([]domain.RawItem, error) {
	if timeout := s.timeouts[kind]; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return f.Fetch(ctx, src)
}

func (s *RunService) calculateBackoff(attempt int) time.Duration {
	backoff := s.config.Retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.config.Retry.MaxBackoff > 0 && backoff > s.config.Retry.MaxBackoff {
		backoff = s.config.Retry.MaxBackoff
	}
	return backoff
}

// publish emits one event per written item. Failures are logged only.
func (s *RunService) publish(ctx context.Context, items []domain.ContentItem, outcomes []domain.UpsertOutcome, logger *slog.Logger) int {
	if s.deps.Publisher == nil || len(outcomes) == 0 {
		return 0
	}

	byKey := make(map[string]int, len(items))
	for i, it := range items {
		byKey[it.NaturalKey] = i
	}

	published := 0
	for _, o := range outcomes {
		i, ok := byKey[o.NaturalKey]
		if !ok {
			continue
		}
		if err := s.deps.Publisher.Publish(ctx, &items[i], o.Inserted); err != nil {
			logger.Warn("publish failed", "natural_key", o.NaturalKey, "error", err)
			continue
		}
		published++
	}
	return published
}

func (s *RunService) recordState(ctx context.Context, src domain.Source, stats domain.SourceStats, logger *slog.Logger) {
	if s.deps.States == nil {
		return
	}

	state, err := s.deps.States.Get(ctx, src.ID)
	if err != nil {
		logger.Warn("failed to load source state", "error", err)
		return
	}

	yielded := stats.Fetched - stats.Dropped
	state.SourceID = src.ID
	state.LastRunAt = s.now().UTC()
	state.LastItemCount = yielded
	state.TotalIngested += int64(stats.Inserted)
	if yielded == 0 {
		state.ConsecutiveZeroYields++
	} else {
		state.ConsecutiveZeroYields = 0
	}
	state.LastError = nil
	if stats.Err != "" {
		msg := stats.Err
		state.LastError = &msg
	}

	if err := s.deps.States.Update(ctx, state); err != nil {
		logger.Warn("failed to record source state", "error", err)
	}
}

// pause holds the loop for the full source delay, measured from the end of
// the previous source. The first source starts at once.
func (s *RunService) pause(ctx context.Context, index int) error {
	if index == 0 || s.config.SourceDelay <= 0 {
		return ctx.Err()
	}

	gap := rate.NewLimiter(rate.Every(s.config.SourceDelay), 1)
	gap.Allow()
	return gap.Wait(ctx)
}

func needsSession(sources []domain.Source) bool {
	for _, src := range sources {
		if src.Kind == domain.KindAuthenticatedSocial {
			return true
		}
	}
	return false
}
