// Package mutator applies reconciliation actions to the remote catalog.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalogsync/internal/assert"
	"catalogsync/internal/catalog"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/woocommerce"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("catalogsync/mutator")
var meter = otel.Meter("catalogsync/mutator")

var outcomeCounter, _ = meter.Int64Counter(
	"mutator.outcomes",
	metric.WithDescription("Actions applied to the remote catalog, by kind and result."),
)

const (
	report_mutator_update_price = "mutator.update-price"
	report_mutator_create       = "mutator.create"
	report_mutator_delete       = "mutator.delete"
	report_mutator_lookup       = "mutator.lookup"
)

var (
	ErrLookupMiss      = errors.New("no remote product with this sku")
	ErrLookupAmbiguous = errors.New("more than one remote product with this sku")
)

// Remote is the part of the woocommerce client mutations go through.
type Remote interface {
	LookupSKU(ctx context.Context, sku string) ([]woocommerce.Product, error)
	UpdatePrice(ctx context.Context, id int64, price catalog.Price) (woocommerce.Product, error)
	CreateProduct(ctx context.Context, product woocommerce.NewProduct) (woocommerce.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ResolveCategory(ctx context.Context, name string) (woocommerce.Category, bool, error)
}

// DetailSource provides the listing details a product is created with.
type DetailSource interface {
	ProductDetail(ctx context.Context, sku string) (catalog.ProductDetail, error)
}

// Outcome is the result of a single action. RemoteID is the id of the product
// the action touched, 0 if it never got that far.
type Outcome struct {
	Action   catalog.Action
	RemoteID int64
	Err      error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

type Options struct {
	// RequestTimeout bounds every remote call and product detail scrape, defaults to 30 seconds.
	RequestTimeout time.Duration
	// DryRun produces outcomes without touching the remote.
	DryRun bool
}

type Mutator struct {
	remote  Remote
	details DetailSource
	opts    Options
	tel     telemetry.API
}

func New(remote Remote, details DetailSource, opts Options, tel telemetry.API) Mutator {
	assert.NotNil(remote, "remote")
	assert.NotNil(details, "details")
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return Mutator{
		remote:  remote,
		details: details,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("mutator", tel),
	}
}

// Apply performs every action in order, a failed action never stops the ones after it.
// Mutations are not retried.
func (m Mutator) Apply(ctx context.Context, actions []catalog.Action) []Outcome {
	ctx, span := tracer.Start(ctx, "Apply")
	defer span.End()
	span.SetAttributes(
		attribute.Int("actions", len(actions)),
		attribute.Bool("dry_run", m.opts.DryRun),
	)

	outcomes := make([]Outcome, 0, len(actions))
	failed := 0
	for _, action := range actions {
		outcome := Outcome{Action: action}
		if !m.opts.DryRun {
			outcome = m.apply(ctx, action)
		}
		if outcome.Failed() {
			failed++
		}
		outcomes = append(outcomes, outcome)

		result := "ok"
		switch {
		case m.opts.DryRun:
			result = "planned"
		case outcome.Failed():
			result = "failed"
		}
		outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", action.Kind.String()),
			attribute.String("result", result),
		))
	}

	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d actions failed", failed, len(actions)))
	}
	m.tel.ReportCount("failed", int64(failed))
	return outcomes
}

func (m Mutator) apply(ctx context.Context, action catalog.Action) Outcome {
	ctx, span := tracer.Start(ctx, action.Kind.String())
	defer span.End()
	span.SetAttributes(attribute.String("sku", action.SKU))

	var outcome Outcome
	switch {
	case strings.TrimSpace(action.SKU) == "":
		m.tel.ReportBroken(report_mutator_lookup, catalog.ErrEmptySku, action.Kind.String())
		outcome = Outcome{Action: action, Err: catalog.ErrEmptySku}
	case action.Kind == catalog.ActionUpdatePrice:
		outcome = m.updatePrice(ctx, action)
	case action.Kind == catalog.ActionCreate:
		outcome = m.create(ctx, action)
	case action.Kind == catalog.ActionDelete:
		outcome = m.delete(ctx, action)
	default:
		outcome = Outcome{Action: action, Err: fmt.Errorf("unknown action kind %v", action.Kind)}
	}

	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	return outcome
}

// call runs fn under the per call timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// lookup resolves the single remote product id of a sku.
func (m Mutator) lookup(ctx context.Context, sku string) (int64, error) {
	candidates, err := call(ctx, m.opts.RequestTimeout, func(ctx context.Context) ([]woocommerce.Product, error) {
		return m.remote.LookupSKU(ctx, sku)
	})
	if err != nil {
		return 0, fmt.Errorf("lookup: %w", err)
	}
	switch len(candidates) {
	case 0:
		m.tel.ReportWarning(report_mutator_lookup, ErrLookupMiss, sku)
		return 0, ErrLookupMiss
	case 1:
		return candidates[0].ID, nil
	default:
		m.tel.ReportWarning(report_mutator_lookup, ErrLookupAmbiguous, sku, len(candidates))
		return 0, ErrLookupAmbiguous
	}
}

func (m Mutator) updatePrice(ctx context.Context, action catalog.Action) Outcome {
	id, err := m.lookup(ctx, action.SKU)
	if err != nil {
		return Outcome{Action: action, Err: err}
	}

	_, err = call(ctx, m.opts.RequestTimeout, func(ctx context.Context) (woocommerce.Product, error) {
		return m.remote.UpdatePrice(ctx, id, action.Price)
	})
	if err != nil {
		m.tel.ReportBroken(report_mutator_update_price, err, action.SKU)
		return Outcome{Action: action, RemoteID: id, Err: fmt.Errorf("update price: %w", err)}
	}

	m.tel.ReportDebug("updated price", action.SKU, action.Price.String())
	return Outcome{Action: action, RemoteID: id}
}

func (m Mutator) create(ctx context.Context, action catalog.Action) Outcome {
	detail, err := call(ctx, m.opts.RequestTimeout, func(ctx context.Context) (catalog.ProductDetail, error) {
		return m.details.ProductDetail(ctx, action.SKU)
	})
	if err != nil {
		m.tel.ReportWarning(report_mutator_create, fmt.Errorf("product detail: %w", err), action.SKU)
		return Outcome{Action: action, Err: fmt.Errorf("product detail: %w", err)}
	}
	if detail.SKU == "" {
		detail.SKU = action.SKU
	}

	var categoryId int64
	if detail.Category != "" {
		var ok bool
		category, err := call(ctx, m.opts.RequestTimeout, func(ctx context.Context) (woocommerce.Category, error) {
			category, found, err := m.remote.ResolveCategory(ctx, detail.Category)
			ok = found
			return category, err
		})
		switch {
		case err != nil:
			m.tel.ReportWarning(report_mutator_create, fmt.Errorf("resolve category: %w", err), action.SKU)
		case !ok:
			m.tel.ReportWarning(report_mutator_create, "unknown category", action.SKU, detail.Category)
		default:
			categoryId = category.ID
		}
	}

	created, err := call(ctx, m.opts.RequestTimeout, func(ctx context.Context) (woocommerce.Product, error) {
		return m.remote.CreateProduct(ctx, woocommerce.NewProductFromDetail(detail, action.Price, categoryId))
	})
	if err != nil {
		m.tel.ReportBroken(report_mutator_create, err, action.SKU)
		return Outcome{Action: action, Err: fmt.Errorf("create product: %w", err)}
	}

	m.tel.ReportDebug("created product", action.SKU, created.ID)
	return Outcome{Action: action, RemoteID: created.ID}
}

func (m Mutator) delete(ctx context.Context, action catalog.Action) Outcome {
	id, err := m.lookup(ctx, action.SKU)
	if err != nil {
		return Outcome{Action: action, Err: err}
	}

	_, err = call(ctx, m.opts.RequestTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.remote.DeleteProduct(ctx, id)
	})
	if err != nil {
		m.tel.ReportBroken(report_mutator_delete, err, action.SKU)
		return Outcome{Action: action, RemoteID: id, Err: fmt.Errorf("delete product: %w", err)}
	}

	m.tel.ReportDebug("deleted product", action.SKU, id)
	return Outcome{Action: action, RemoteID: id}
}

// Failures returns only the failed outcomes.
func Failures(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}
