// Package seeder runs the seed sequence: load sources, connect, clear,
// transform, audit, insert, report and publish the completion event.
package seeder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/global-data-controller/countryseed/internal/catalog"
	"github.com/global-data-controller/countryseed/internal/config"
	"github.com/global-data-controller/countryseed/internal/eventbus"
	"github.com/global-data-controller/countryseed/internal/logging"
	"github.com/global-data-controller/countryseed/internal/models"
	"github.com/global-data-controller/countryseed/internal/policy"
	"github.com/global-data-controller/countryseed/internal/report"
	"github.com/global-data-controller/countryseed/internal/storage"
	"github.com/global-data-controller/countryseed/internal/telemetry"
	"github.com/global-data-controller/countryseed/internal/transform"
)

// Metric names
const (
	metricCleared  = "countryseed_documents_cleared"
	metricInserted = "countryseed_documents_inserted"
	metricStage    = "countryseed_stage"
)

// StoreOpener opens a document store.
type StoreOpener func(ctx context.Context, opts storage.Options) (storage.Store, error)

// Result describes a finished run.
type Result struct {
	RunID      string
	Backend    string
	Removed    int64
	Inserted   int
	Summary    transform.Summary
	Samples    []models.Country
	Violations []string
}

// Seeder runs one seed sequence per Run call.
type Seeder struct {
	cfg       *config.Config
	logger    logging.Logger
	telemetry *telemetry.Telemetry
	out       io.Writer
	openStore StoreOpener
	publisher eventbus.Publisher
}

// Option customizes a Seeder.
type Option func(*Seeder)

// WithOutput sets where the report is written. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Seeder) { s.out = w }
}

// WithStoreOpener replaces storage.Open.
func WithStoreOpener(open StoreOpener) Option {
	return func(s *Seeder) { s.openStore = open }
}

// WithPublisher replaces the publisher built from the events config.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Seeder) { s.publisher = p }
}

// WithTelemetry sets the telemetry used for spans and metrics.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(s *Seeder) { s.telemetry = t }
}

// New creates a Seeder for cfg.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Seeder{
		cfg:       cfg,
		logger:    logger,
		out:       os.Stdout,
		openStore: storage.Open,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.telemetry == nil {
		s.telemetry, _ = telemetry.NewTelemetry(telemetry.TelemetryConfig{Enabled: false}, nil)
	}

	return s
}

// LoadRecords loads the configured sources and transforms them without
// touching a store.
func LoadRecords(cfg config.DataConfig) ([]models.Country, error) {
	sources, err := catalog.Load(catalogOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load data sources: %w", err)
	}
	return transform.Countries(sources), nil
}

func catalogOptions(cfg config.DataConfig) catalog.Options {
	return catalog.Options{
		Source:        cfg.Source,
		Dir:           cfg.Dir,
		CountriesFile: cfg.CountriesFile,
		FlagsFile:     cfg.FlagsFile,
		StatesFile:    cfg.StatesFile,
	}
}

// Run executes the seed sequence. Any error is fatal to the run; the
// store may be left cleared when a failure happens after the clear step.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run_id", runID))
	printer := report.New(s.out)

	ctx, span := s.telemetry.StartSpan(ctx, "seed.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	result := &Result{RunID: runID}

	err := s.run(ctx, logger, printer, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := printer.Err(); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	return result, nil
}

func (s *Seeder) run(ctx context.Context, logger logging.Logger, printer *report.Printer, result *Result) error {
	var sources *catalog.Sources
	err := s.stage(ctx, "load_sources", func(ctx context.Context) error {
		var err error
		sources, err = catalog.Load(catalogOptions(s.cfg.Data))
		if err != nil {
			return fmt.Errorf("failed to load data sources: %w", err)
		}
		logger.Debug(ctx, "Data sources loaded",
			zap.String("source", sources.Kind),
			zap.Int("countries", len(sources.Countries)))
		return nil
	})
	if err != nil {
		return err
	}

	opts := s.storeOptions()
	if s.cfg.Seed.DryRun {
		printer.DryRun()
	}
	if strings.TrimSpace(opts.URI) == "" {
		return fmt.Errorf("failed to connect: %w", storage.ErrNoConnectionString)
	}

	backend, err := storage.BackendFor(opts.URI)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	result.Backend = backend

	printer.Connecting(backend)
	logger.Info(ctx, "Connecting to document store",
		zap.String("backend", backend),
		zap.String("uri", storage.Redact(opts.URI)),
		zap.Duration("connect_timeout", opts.ConnectTimeout))

	var store storage.Store
	err = s.stage(ctx, "connect", func(ctx context.Context) error {
		var err error
		store, err = s.openStore(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", report.DisplayName(backend), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn(ctx, "Failed to close document store", zap.Error(err))
		}
	}()
	printer.Connected(backend)

	records := transform.Countries(sources)

	if s.cfg.Audit.Enabled {
		err = s.stage(ctx, "audit", func(ctx context.Context) error {
			violations, err := s.audit(ctx, records)
			if err != nil {
				return err
			}
			result.Violations = violations
			for _, v := range violations {
				logger.Warn(ctx, "Audit violation", zap.String("violation", v))
			}
			if s.cfg.Audit.Strict {
				return policy.Enforce(violations)
			}
			return nil
		})
		if err != nil {
			return err
		}
		printer.AuditWarnings(result.Violations)
	}

	err = s.stage(ctx, "clear", func(ctx context.Context) error {
		removed, err := store.Clear(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		result.Removed = removed
		_ = s.telemetry.AddCounter(ctx, metricCleared, removed, attribute.String("backend", backend))
		return nil
	})
	if err != nil {
		return err
	}
	printer.Cleared(result.Removed)

	err = s.stage(ctx, "insert", func(ctx context.Context) error {
		inserted, err := store.InsertMany(ctx, records)
		if err != nil {
			return fmt.Errorf("failed to insert countries: %w", err)
		}
		result.Inserted = inserted
		_ = s.telemetry.AddCounter(ctx, metricInserted, int64(inserted), attribute.String("backend", backend))
		return nil
	})
	if err != nil {
		return err
	}
	printer.Inserted(result.Inserted)

	result.Summary = transform.Summarize(records)
	printer.Summary(result.Summary)

	if limit := s.cfg.Seed.SampleLimit; limit > 0 {
		err = s.stage(ctx, "sample", func(ctx context.Context) error {
			samples, err := store.SampleMiddleEastern(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to read samples: %w", err)
			}
			result.Samples = samples
			return nil
		})
		if err != nil {
			return err
		}
		printer.Samples(result.Samples)
	}

	s.publish(ctx, logger, result)

	logger.Info(ctx, "Seed completed",
		zap.String("backend", backend),
		zap.Int("inserted", result.Inserted),
		zap.Int("middle_eastern", result.Summary.MiddleEastern),
		zap.Int("states", result.Summary.States))
	printer.Completed()

	return nil
}

func (s *Seeder) storeOptions() storage.Options {
	uri := s.cfg.Database.URI
	if s.cfg.Seed.DryRun {
		uri = "memory://"
	}
	return storage.Options{
		URI:            uri,
		Database:       s.cfg.Database.Name,
		Collection:     s.cfg.Database.Collection,
		ConnectTimeout: s.cfg.Database.ConnectTimeout,
		Token:          s.cfg.Database.Token,
	}
}

func (s *Seeder) audit(ctx context.Context, records []models.Country) ([]string, error) {
	var module string
	if path := s.cfg.Audit.PolicyFile; path != "" {
		var err error
		module, err = policy.LoadModule(path)
		if err != nil {
			return nil, err
		}
	}

	auditor, err := policy.NewAuditor(ctx, module)
	if err != nil {
		return nil, err
	}

	return auditor.Audit(ctx, records)
}

// publish sends the completion event. The load already succeeded, so
// failures are logged and dropped.
func (s *Seeder) publish(ctx context.Context, logger logging.Logger, result *Result) {
	publisher := s.publisher
	if publisher == nil {
		var err error
		publisher, err = eventbus.NewPublisher(&eventbus.Config{
			URL:     s.cfg.Events.URL,
			Subject: s.cfg.Events.Subject,
			Timeout: s.cfg.Events.Timeout,
		}, logger.Zap())
		if err != nil {
			logger.Warn(ctx, "Failed to connect to event bus", zap.Error(err))
			return
		}
		defer publisher.Close()
	}

	collection := s.cfg.Database.Collection
	if collection == "" {
		collection = storage.DefaultCollection
	}

	event := eventbus.NewSeededEvent(
		result.RunID,
		result.Backend,
		collection,
		result.Summary.Total,
		result.Summary.MiddleEastern,
		result.Summary.States,
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.WithTraceID(sc.TraceID().String())
	}

	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "Failed to publish completion event", zap.Error(err))
	}
}

// stage runs fn in its own span and records its duration.
func (s *Seeder) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.telemetry.StartSpan(ctx, "seed."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	_ = s.telemetry.RecordDuration(ctx, metricStage, start, attribute.String("stage", name))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
