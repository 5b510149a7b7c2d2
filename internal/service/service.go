// Package service wires configuration, telemetry and clients into a ready to run pipeline.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/components/chrono"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/config"
	"catalogsync/internal/mutator"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/report"
	"catalogsync/internal/runlog"
	"catalogsync/internal/scrapers/storefront"
	"catalogsync/internal/woocommerce"
)

const (
	report_service_schedule = "service.schedule"
	report_service_close    = "service.close"
)

var ErrRunLogDisabled = errors.New("run log is not configured")

type options struct {
	configPath string
	dryRun     bool
	tel        telemetry.API
	clock      chrono.API
	otel       bool
}

type Option func(*options)

// WithConfigPath reads the config from path instead of config.json5.
func WithConfigPath(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithDryRun makes compare passes plan actions without applying them.
func WithDryRun() Option {
	return func(o *options) {
		o.dryRun = true
	}
}

func WithTelemetry(tel telemetry.API) Option {
	return func(o *options) {
		o.tel = tel
	}
}

func WithClock(clock chrono.API) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithoutOtel skips looking for telemetry.json5.
func WithoutOtel() Option {
	return func(o *options) {
		o.otel = false
	}
}

type Service struct {
	Config   config.Config
	Pipeline pipeline.Pipeline
	// RunLog is nil when no run log database is configured.
	RunLog *runlog.Store

	tel      telemetry.API
	clock    chrono.API
	otel     telemetry.Otel
	database *sql.DB

	// errors of the clients that could not be created, stages needing them fail with it
	sourceErr error
	remoteErr error
}

// New loads the configuration and creates every client it allows. A client that cannot be
// created only fails the stages that use it.
func New(ctx context.Context, serviceName string, opts ...Option) (*Service, error) {
	o := options{
		configPath: config.DefaultConfigFile,
		tel:        telemetry.SlogAPI{},
		otel:       true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	s := &Service{Config: cfg, tel: o.tel}

	if o.otel {
		s.otel, err = telemetry.SetupFromEnv(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("setup otel: %w", err)
		}
	}

	s.clock = o.clock
	if s.clock == nil {
		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		s.clock = clock
	}

	output, err := cfg.HttpOutput()
	if err != nil {
		return nil, fmt.Errorf("prepare http dump dir: %w", err)
	}

	var source *storefront.Client
	sourceOpts, err := cfg.StorefrontOptions(output)
	if err == nil {
		source, err = storefront.NewClient(sourceOpts, s.tel)
	}
	s.sourceErr = err

	remote, err := woocommerce.NewClient(cfg.WooCommerceOptions(output), s.tel)
	s.remoteErr = err

	if cfg.RunLog.Enabled() {
		s.database, err = cfg.RunLog.OpenDB()
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
		store, err := runlog.NewStore(ctx, s.database, s.clock, s.tel)
		if err != nil {
			s.database.Close()
			return nil, fmt.Errorf("open run log: %w", err)
		}
		s.RunLog = &store
	}

	pipelineOpts := pipeline.Options{
		CategoryUrls: cfg.Storefront.CategoryUrls,
		Clock:        s.clock,
		SourceCsv:    cfg.Files.SourceCsv,
		RemoteCsv:    cfg.Files.RemoteCsv,
		DryRun:       o.dryRun,
	}
	if source != nil {
		pipelineOpts.Source = source
	}
	if remote != nil {
		pipelineOpts.Remote = remote
	}
	if source != nil && remote != nil {
		pipelineOpts.Mutator = mutator.New(remote, source, cfg.MutatorOptions(o.dryRun), s.tel)
	}
	if s.RunLog != nil {
		pipelineOpts.RunLog = s.RunLog
	}
	if cfg.Smtp.Enabled() {
		pipelineOpts.Notifier = report.NewMailer(cfg.Smtp)
	}
	s.Pipeline = pipeline.New(pipelineOpts, s.tel)

	return s, nil
}

func (s *Service) Clock() chrono.API {
	return s.clock
}

func (s *Service) ScrapeSource(ctx context.Context) error {
	if s.sourceErr != nil {
		return fmt.Errorf("storefront: %w", s.sourceErr)
	}
	return s.Pipeline.ScrapeSource(ctx)
}

func (s *Service) FetchRemote(ctx context.Context) error {
	if s.remoteErr != nil {
		return fmt.Errorf("woocommerce: %w", s.remoteErr)
	}
	return s.Pipeline.FetchRemote(ctx)
}

// Compare needs both clients, the storefront provides the details of created products.
func (s *Service) Compare(ctx context.Context) (report.Pass, error) {
	if s.remoteErr != nil {
		return report.Pass{}, fmt.Errorf("woocommerce: %w", s.remoteErr)
	}
	if s.sourceErr != nil {
		return report.Pass{}, fmt.Errorf("storefront: %w", s.sourceErr)
	}
	return s.Pipeline.Compare(ctx)
}

func (s *Service) RunAll(ctx context.Context) (report.Pass, error) {
	if s.remoteErr != nil {
		return report.Pass{}, fmt.Errorf("woocommerce: %w", s.remoteErr)
	}
	if s.sourceErr != nil {
		return report.Pass{}, fmt.Errorf("storefront: %w", s.sourceErr)
	}
	return s.Pipeline.RunAll(ctx)
}

// Schedule runs every stage on the cron spec until ctx is done, a pass still running
// when the next one is due makes the next one get skipped.
func (s *Service) Schedule(ctx context.Context, spec string) error {
	if spec == "" {
		return errors.New("no schedule configured")
	}

	cron := chrono.NewStandardCron(s.tel, s.clock.Location())
	err := cron.Cron(spec, func() {
		_, err := s.RunAll(ctx)
		if err != nil {
			s.tel.ReportBroken(report_service_schedule, err)
		}
	})
	if err != nil {
		<-cron.Stop()
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	telemetry.InstrumentPerfStats(ctx, 30*time.Second, s.tel)

	<-ctx.Done()
	<-cron.Stop()
	return nil
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]runlog.Run, error) {
	if s.RunLog == nil {
		return nil, ErrRunLogDisabled
	}
	return s.RunLog.ListRuns(ctx, limit)
}

// Close flushes telemetry and closes the run log.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	err := s.otel.Shutdown(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if s.database != nil {
		err = s.database.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}
	err = errors.Join(errs...)
	if err != nil {
		s.tel.ReportWarning(report_service_close, err)
	}
	return err
}
