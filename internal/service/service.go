// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vorlif/spreak"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wneessen/weather-monitor/internal/condition"
	"github.com/wneessen/weather-monitor/internal/config"
	"github.com/wneessen/weather-monitor/internal/http"
	"github.com/wneessen/weather-monitor/internal/logger"
	"github.com/wneessen/weather-monitor/internal/metrics"
	"github.com/wneessen/weather-monitor/internal/presenter"
	"github.com/wneessen/weather-monitor/internal/report"
	"github.com/wneessen/weather-monitor/internal/weather"
)

var (
	// ErrUnknownSource is returned for a location whose source has no provider.
	ErrUnknownSource = errors.New("unknown weather source")
	// ErrProviderPanic is returned when a provider panicked while fetching a location.
	ErrProviderPanic = errors.New("weather provider panicked")
)

// Entry is the rendered result of one location.
type Entry struct {
	Location weather.Location
	Outcome  weather.Outcome
	Display  string
	Summary  string
}

type Service struct {
	config     *config.Config
	logger     *logger.Logger
	http       *http.Client
	presenter  *presenter.Presenter
	providers  map[string]weather.Provider
	metrics    *metrics.Metrics
	writer     *report.Writer
	locations  []weather.Location
	headerZone *time.Location
	output     io.Writer
	now        func() time.Time
}

func New(conf *config.Config, log *logger.Logger, localizer *spreak.Localizer) (*Service, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	zone, err := time.LoadLocation(conf.Report.HeaderTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load header timezone: %w", err)
	}

	service := &Service{
		config:     conf,
		logger:     log,
		http:       http.New(log, httpConfig(conf)),
		presenter:  presenter.New(localizer),
		metrics:    metrics.New(),
		writer:     report.NewWriter(conf.Report.File),
		locations:  locations(conf),
		headerZone: zone,
		output:     os.Stdout,
		now:        time.Now,
	}
	service.providers, err = service.selectWeatherProviders(service.http, condition.New(localizer))
	if err != nil {
		return nil, err
	}
	return service, nil
}

// Run performs one monitoring run: every configured location is fetched, rendered to the console
// and summarized in the report artifact. Failing locations never fail the run, only a report that
// cannot be written does.
func (s *Service) Run(ctx context.Context) error {
	log := s.logger.With(slog.String("run_id", uuid.NewString()))
	_, _ = fmt.Fprintln(s.output, s.presenter.Header(s.now().In(s.headerZone)))

	entries := s.assemble(ctx, log, s.locations)
	lines := make([]string, 0, len(entries))
	failed := 0
	for _, entry := range entries {
		_, _ = fmt.Fprintln(s.output, entry.Display)
		lines = append(lines, entry.Summary)
		if !entry.Outcome.OK() {
			failed++
		}
	}

	if err := s.writer.Write(lines); err != nil {
		return fmt.Errorf("failed to write weather report: %w", err)
	}
	_, _ = fmt.Fprintln(s.output, s.presenter.Footer(s.writer.Path()))

	s.metrics.MarkRun(s.now())
	if s.config.Report.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.config.Report.MetricsFile); err != nil {
			log.Error("failed to write metrics textfile", logger.Err(err))
		}
	}
	log.Info("weather monitoring run finished", slog.Int("locations", len(entries)),
		slog.Int("failed", failed), slog.String("report", s.writer.Path()))
	return nil
}

// Assemble fetches and renders the given locations. It returns exactly one Entry per location, in
// the order of locs, regardless of failures or cancellation.
func (s *Service) Assemble(ctx context.Context, locs []weather.Location) []Entry {
	return s.assemble(ctx, s.logger, locs)
}

func (s *Service) assemble(ctx context.Context, log *logger.Logger, locs []weather.Location) []Entry {
	entries := make([]Entry, len(locs))
	limiter := s.newLimiter()

	var group errgroup.Group
	group.SetLimit(s.config.Fetch.Workers)
	for i, loc := range locs {
		if err := limiter.Wait(ctx); err != nil {
			entries[i] = s.entry(loc, weather.RequestFailed(fmt.Errorf("location skipped: %w", err)))
			continue
		}
		group.Go(func() error {
			entries[i] = s.process(ctx, log, loc)
			return nil
		})
	}
	_ = group.Wait()
	return entries
}

// newLimiter returns the token bucket that paces the start of location fetches.
func (s *Service) newLimiter() *rate.Limiter {
	if s.config.Fetch.Pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.config.Fetch.Pause), 1)
}

func (s *Service) process(ctx context.Context, log *logger.Logger, loc weather.Location) (entry Entry) {
	log = log.With(slog.String("location", loc.Name), slog.String("source", loc.Source))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			entry = s.entry(loc, weather.RequestFailed(fmt.Errorf("%w: %v", ErrProviderPanic, r)))
			log.Error("weather provider panicked", logger.Err(entry.Outcome.Err))
		}
	}()

	var outcome weather.Outcome
	provider, ok := s.providers[loc.Source]
	if !ok {
		outcome = weather.RequestFailed(fmt.Errorf("%w: %q", ErrUnknownSource, loc.Source))
	} else {
		outcome = provider.Fetch(ctx, loc)
	}
	duration := time.Since(start)
	s.metrics.Observe(loc, outcome, duration)

	switch outcome.Kind {
	case weather.OutcomeSuccess:
		log.Debug("weather data retrieved", slog.Duration("duration", duration),
			slog.String("time", outcome.Conditions.Time))
	case weather.OutcomeEmptyData:
		log.Warn("weather data is empty", slog.String("reason", outcome.Reason))
	default:
		log.Error("failed to retrieve weather data", logger.Err(outcome.Err))
	}
	return s.entry(loc, outcome)
}

func (s *Service) entry(loc weather.Location, outcome weather.Outcome) Entry {
	return Entry{
		Location: loc,
		Outcome:  outcome,
		Display:  s.presenter.DisplayBlock(loc, outcome),
		Summary:  presenter.SummaryLine(loc, outcome),
	}
}
