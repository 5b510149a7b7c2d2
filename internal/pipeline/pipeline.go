// Package pipeline composes the synchronization stages shared by every entry point.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"catalogsync/internal/assert"
	"catalogsync/internal/catalog"
	"catalogsync/internal/components/chrono"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/mutator"
	"catalogsync/internal/reconcile"
	"catalogsync/internal/report"
	"catalogsync/internal/runlog"
	"catalogsync/internal/snapshot"
	"catalogsync/internal/woocommerce"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("catalogsync/pipeline")
var meter = otel.Meter("catalogsync/pipeline")

var actionCounter, _ = meter.Int64Counter(
	"pipeline.actions",
	metric.WithDescription("Actions produced by reconciliation, by kind."),
)

const (
	StageScrape  = "scrape"
	StageFetch   = "fetch-remote"
	StageCompare = "compare"
	StagePlan    = "plan"
)

const (
	report_pipeline_scrape  = "pipeline.scrape"
	report_pipeline_fetch   = "pipeline.fetch-remote"
	report_pipeline_compare = "pipeline.compare"
	report_pipeline_runlog  = "pipeline.runlog"
	report_pipeline_notify  = "pipeline.notify"
)

var ErrNothingScraped = errors.New("no products were scraped")

type Source interface {
	FetchAll(ctx context.Context, categoryUrls []string) ([]catalog.ProductRecord, error)
}

type Remote interface {
	ListProducts(ctx context.Context) ([]woocommerce.Product, error)
	RemoteRecords(products []woocommerce.Product) []catalog.RemoteRecord
}

type Applier interface {
	Apply(ctx context.Context, actions []catalog.Action) []mutator.Outcome
}

type RunLog interface {
	BeginRun(ctx context.Context, stage string) (runlog.Run, error)
	RecordOutcomes(ctx context.Context, runId string, outcomes []mutator.Outcome) error
	FinishRun(ctx context.Context, runId string, summary reconcile.Summary, runErr error) error
}

type Notifier interface {
	Send(p report.Pass) error
}

// Options holds the dependencies of a pipeline, stages only need the ones they use.
// RunLog and Notifier are optional.
type Options struct {
	Source       Source
	CategoryUrls []string
	Remote       Remote
	Mutator      Applier
	RunLog       RunLog
	Notifier     Notifier
	Clock        chrono.API

	SourceCsv string
	RemoteCsv string
	// DryRun makes compare leave the remote snapshot untouched, the mutator is
	// expected to be in dry run mode as well.
	DryRun bool
}

type Pipeline struct {
	opts Options
	tel  telemetry.API
}

func New(opts Options, tel telemetry.API) Pipeline {
	assert.NotEmptyStr(opts.SourceCsv, "source csv")
	assert.NotEmptyStr(opts.RemoteCsv, "remote csv")
	return Pipeline{
		opts: opts,
		tel:  telemetry.NewScopedAPI("pipeline", tel),
	}
}

type stageResult struct {
	summary  reconcile.Summary
	outcomes []mutator.Outcome
}

// track runs a stage inside a span and a run log entry, run log failures never fail the stage.
func (p Pipeline) track(ctx context.Context, stage string, fn func(ctx context.Context, runId string) (stageResult, error)) (string, error) {
	ctx, span := tracer.Start(ctx, stage)
	defer span.End()

	var runId string
	if p.opts.RunLog != nil {
		run, err := p.opts.RunLog.BeginRun(ctx, stage)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_runlog, fmt.Errorf("begin run: %w", err), stage)
		} else {
			runId = run.ID
			span.SetAttributes(attribute.String("run_id", runId))
		}
	}

	result, err := fn(ctx, runId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if runId != "" {
		if len(result.outcomes) > 0 {
			recordErr := p.opts.RunLog.RecordOutcomes(ctx, runId, result.outcomes)
			if recordErr != nil {
				p.tel.ReportWarning(report_pipeline_runlog, fmt.Errorf("record outcomes: %w", recordErr), runId)
			}
		}
		finishErr := p.opts.RunLog.FinishRun(ctx, runId, result.summary, err)
		if finishErr != nil {
			p.tel.ReportWarning(report_pipeline_runlog, fmt.Errorf("finish run: %w", finishErr), runId)
		}
	}
	return runId, err
}

// ScrapeSource scrapes every category and writes the source snapshot. Categories or pages that
// fail are skipped, the stage only fails if nothing could be scraped at all.
func (p Pipeline) ScrapeSource(ctx context.Context) error {
	_, err := p.track(ctx, StageScrape, func(ctx context.Context, _ string) (stageResult, error) {
		products, err := p.opts.Source.FetchAll(ctx, p.opts.CategoryUrls)
		if err != nil {
			if len(products) == 0 {
				p.tel.ReportBroken(report_pipeline_scrape, err)
				return stageResult{}, errors.Join(ErrNothingScraped, err)
			}
			p.tel.ReportWarning(report_pipeline_scrape, fmt.Errorf("partial scrape: %w", err))
		}

		products = catalog.DedupeProducts(products)
		err = snapshot.WriteSource(p.opts.SourceCsv, products)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_scrape, err, p.opts.SourceCsv)
			return stageResult{}, err
		}
		p.tel.ReportCount("source products", int64(len(products)))
		return stageResult{}, nil
	})
	return err
}

// FetchRemote lists the remote catalog and writes the remote snapshot with every flag cleared.
// A partially listed catalog is never written.
func (p Pipeline) FetchRemote(ctx context.Context) error {
	_, err := p.track(ctx, StageFetch, func(ctx context.Context, _ string) (stageResult, error) {
		products, err := p.opts.Remote.ListProducts(ctx)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_fetch, err, len(products))
			return stageResult{}, fmt.Errorf("list products: %w", err)
		}

		records := p.opts.Remote.RemoteRecords(products)
		err = snapshot.WriteRemote(p.opts.RemoteCsv, records)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_fetch, err, p.opts.RemoteCsv)
			return stageResult{}, err
		}
		p.tel.ReportCount("remote products", int64(len(records)))
		return stageResult{}, nil
	})
	return err
}

// Compare reconciles both snapshots, applies the resulting actions and writes the remote
// snapshot back with its match flags. A missing or malformed snapshot aborts the stage
// before anything is applied.
func (p Pipeline) Compare(ctx context.Context) (report.Pass, error) {
	stage := StageCompare
	if p.opts.DryRun {
		stage = StagePlan
	}

	pass := report.Pass{DryRun: p.opts.DryRun}
	if p.opts.Clock != nil {
		pass.StartedAt = p.opts.Clock.Now()
	}

	runId, err := p.track(ctx, stage, func(ctx context.Context, runId string) (stageResult, error) {
		source, err := snapshot.ReadSource(p.opts.SourceCsv)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_compare, err, p.opts.SourceCsv)
			return stageResult{}, err
		}
		remote, err := snapshot.ReadRemote(p.opts.RemoteCsv)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_compare, err, p.opts.RemoteCsv)
			return stageResult{}, err
		}

		result := reconcile.Reconcile(source, remote)
		summary := result.Summary()
		pass.Summary = summary
		for _, action := range result.Actions {
			actionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", action.Kind.String())))
		}
		p.tel.ReportDebug(
			"reconciled",
			"updates", summary.Updates,
			"creates", summary.Creates,
			"deletes", summary.Deletes,
			"unchanged", summary.Unchanged,
		)

		pass.Outcomes = p.opts.Mutator.Apply(ctx, result.Actions)
		stageRes := stageResult{summary: summary, outcomes: pass.Outcomes}

		if p.opts.DryRun {
			return stageRes, nil
		}
		err = snapshot.WriteRemote(p.opts.RemoteCsv, result.Remote)
		if err != nil {
			p.tel.ReportBroken(report_pipeline_compare, err, p.opts.RemoteCsv)
			return stageRes, err
		}
		return stageRes, nil
	})
	pass.RunID = runId
	pass.Err = err

	if p.opts.Notifier != nil && !p.opts.DryRun {
		notifyErr := p.opts.Notifier.Send(pass)
		if notifyErr != nil {
			p.tel.ReportWarning(report_pipeline_notify, notifyErr)
		}
	}
	return pass, err
}

// RunAll runs every stage in order, stopping at the first stage that fails.
func (p Pipeline) RunAll(ctx context.Context) (report.Pass, error) {
	err := p.ScrapeSource(ctx)
	if err != nil {
		return report.Pass{}, fmt.Errorf("scrape: %w", err)
	}
	err = p.FetchRemote(ctx)
	if err != nil {
		return report.Pass{}, fmt.Errorf("fetch remote: %w", err)
	}
	pass, err := p.Compare(ctx)
	if err != nil {
		return pass, fmt.Errorf("compare: %w", err)
	}
	return pass, nil
}
