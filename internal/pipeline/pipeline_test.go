package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalogsync/internal/catalog"
	"catalogsync/internal/components/chrono"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/mutator"
	"catalogsync/internal/reconcile"
	"catalogsync/internal/report"
	"catalogsync/internal/runlog"
	"catalogsync/internal/snapshot"
	"catalogsync/internal/woocommerce"
	"catalogsync/internal/woocommerce/woocommercetest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	products []catalog.ProductRecord
	err      error
}

func (f *fakeSource) FetchAll(ctx context.Context, categoryUrls []string) ([]catalog.ProductRecord, error) {
	return f.products, f.err
}

type fakeDetails struct{}

func (fakeDetails) ProductDetail(ctx context.Context, sku string) (catalog.ProductDetail, error) {
	return catalog.ProductDetail{SKU: sku, Name: "Product " + sku}, nil
}

type fakeNotifier struct {
	sent []report.Pass
}

func (f *fakeNotifier) Send(p report.Pass) error {
	f.sent = append(f.sent, p)
	return nil
}

type harness struct {
	server   *woocommercetest.Server
	source   *fakeSource
	store    runlog.Store
	notifier *fakeNotifier
	dir      string
	tel      *telemetry.Recorder
}

func newHarness(t *testing.T) *harness {
	server := woocommercetest.NewServer()
	t.Cleanup(server.Close)

	database, err := runlog.Config{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := &chrono.StepImpl{Current: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), Step: time.Second}
	tel := &telemetry.Recorder{}
	store, err := runlog.NewStore(context.Background(), database, clock, tel)
	require.NoError(t, err)

	return &harness{
		server:   server,
		source:   &fakeSource{},
		store:    store,
		notifier: &fakeNotifier{},
		dir:      t.TempDir(),
		tel:      tel,
	}
}

func (h *harness) pipeline(t *testing.T, dryRun bool) Pipeline {
	client, err := woocommerce.NewClient(h.server.Options(), h.tel)
	require.NoError(t, err)

	return New(Options{
		Source:       h.source,
		CategoryUrls: []string{"https://store.example/c/all"},
		Remote:       client,
		Mutator:      mutator.New(client, fakeDetails{}, mutator.Options{DryRun: dryRun}, h.tel),
		RunLog:       h.store,
		Notifier:     h.notifier,
		Clock:        &chrono.StepImpl{Current: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		SourceCsv:    filepath.Join(h.dir, "website_products.csv"),
		RemoteCsv:    filepath.Join(h.dir, "woocommerce_products.csv"),
		DryRun:       dryRun,
	}, h.tel)
}

func (h *harness) remoteSnapshot(t *testing.T) []catalog.RemoteRecord {
	records, err := snapshot.ReadRemote(filepath.Join(h.dir, "woocommerce_products.csv"))
	require.NoError(t, err)
	return records
}

func priceComparer() cmp.Option {
	return cmp.Comparer(func(a, b catalog.Price) bool { return a.Equal(b) })
}

func TestRunAllExampleScenario(t *testing.T) {
	h := newHarness(t)
	h.server.AddProduct("A", "10.00")
	h.server.AddProduct("C", "5.00")
	h.source.products = []catalog.ProductRecord{
		{SKU: "A", Price: catalog.MustPrice("10")},
		{SKU: "B", Price: catalog.MustPrice("20")},
	}

	p := h.pipeline(t, false)
	pass, err := p.RunAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, reconcile.Summary{Creates: 1, Deletes: 1, Unchanged: 1}, pass.Summary)

	actions := make([]catalog.Action, len(pass.Outcomes))
	for i, o := range pass.Outcomes {
		require.NoError(t, o.Err)
		actions[i] = o.Action
	}
	expected := []catalog.Action{
		catalog.Create("B", catalog.MustPrice("20")),
		catalog.Delete("C"),
	}
	if diff := cmp.Diff(expected, actions, priceComparer()); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}

	remote := h.remoteSnapshot(t)
	expectedRemote := []catalog.RemoteRecord{
		{SKU: "A", Price: catalog.MustPrice("10"), Matched: true},
		{SKU: "C", Price: catalog.MustPrice("5"), Matched: false},
	}
	if diff := cmp.Diff(expectedRemote, remote, priceComparer()); diff != "" {
		t.Fatalf("remote snapshot mismatch (-want +got):\n%s", diff)
	}

	var skus []string
	for _, product := range h.server.Products() {
		skus = append(skus, product.SKU)
	}
	require.Equal(t, []string{"A", "B"}, skus)

	runs, err := h.store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, StageCompare, runs[0].Stage)
	require.Equal(t, pass.RunID, runs[0].ID)
	require.Equal(t, pass.Summary, runs[0].Summary)
	require.Equal(t, StageFetch, runs[1].Stage)
	require.Equal(t, StageScrape, runs[2].Stage)

	outcomes, err := h.store.RunOutcomes(context.Background(), pass.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	require.Len(t, h.notifier.sent, 1)
	require.Equal(t, pass.RunID, h.notifier.sent[0].RunID)

	// a second pass over the converged catalog does nothing
	pass, err = p.RunAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, pass.Outcomes)
	require.Equal(t, reconcile.Summary{Unchanged: 2}, pass.Summary)
}

func TestCompareUpdatesPrices(t *testing.T) {
	h := newHarness(t)
	h.server.AddProduct("A", "10.00")
	h.source.products = []catalog.ProductRecord{{SKU: "A", Price: catalog.MustPrice("12.5")}}

	p := h.pipeline(t, false)
	_, err := p.RunAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "12.5", h.server.Products()[0].RegularPrice)

	require.NoError(t, p.FetchRemote(context.Background()))
	pass, err := p.Compare(context.Background())
	require.NoError(t, err)
	require.Empty(t, pass.Outcomes)
}

func TestCompareDryRun(t *testing.T) {
	h := newHarness(t)
	h.server.AddProduct("A", "10.00")
	h.server.AddProduct("C", "5.00")
	h.source.products = []catalog.ProductRecord{{SKU: "B", Price: catalog.MustPrice("1")}}

	live := h.pipeline(t, false)
	require.NoError(t, live.ScrapeSource(context.Background()))
	require.NoError(t, live.FetchRemote(context.Background()))
	before := h.remoteSnapshot(t)

	plan := h.pipeline(t, true)
	pass, err := plan.Compare(context.Background())
	require.NoError(t, err)
	require.True(t, pass.DryRun)
	require.Len(t, pass.Outcomes, 3)
	require.Empty(t, h.server.MutatingCalls())
	require.Equal(t, before, h.remoteSnapshot(t))
	require.Empty(t, h.notifier.sent)

	runs, err := h.store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StagePlan, runs[0].Stage)
}

func TestCompareMissingSnapshot(t *testing.T) {
	h := newHarness(t)
	h.source.products = []catalog.ProductRecord{{SKU: "A", Price: catalog.MustPrice("1")}}

	p := h.pipeline(t, false)
	require.NoError(t, p.ScrapeSource(context.Background()))

	pass, err := p.Compare(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, err, pass.Err)
	require.Empty(t, h.server.MutatingCalls())

	run, err := h.store.GetRun(context.Background(), pass.RunID)
	require.NoError(t, err)
	require.NotEmpty(t, run.Error)
	require.Len(t, h.notifier.sent, 1)
}

func TestScrapeSourceFailures(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, false)
	sourceCsv := filepath.Join(h.dir, "website_products.csv")

	h.source.err = errors.New("page 1 of https://store.example/c/all: status 503")
	err := p.ScrapeSource(context.Background())
	require.ErrorIs(t, err, ErrNothingScraped)
	_, statErr := os.Stat(sourceCsv)
	require.True(t, os.IsNotExist(statErr))

	h.source.products = []catalog.ProductRecord{
		{SKU: "A", Price: catalog.MustPrice("1")},
		{SKU: "A", Price: catalog.MustPrice("2")},
	}
	require.NoError(t, p.ScrapeSource(context.Background()))
	written, err := snapshot.ReadSource(sourceCsv)
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.True(t, written[0].Price.Equal(catalog.MustPrice("1")))
}

func TestFetchRemoteNeverWritesPartialCatalog(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 150; i++ {
		h.server.AddProduct(fmt.Sprintf("P-%03d", i), "1")
	}
	h.server.Fail = func(r *http.Request) int {
		if r.URL.Query().Get("page") == "2" {
			return http.StatusInternalServerError
		}
		return 0
	}

	p := h.pipeline(t, false)
	err := p.FetchRemote(context.Background())
	var statusErr *woocommerce.StatusError
	require.True(t, errors.As(err, &statusErr))

	_, statErr := os.Stat(filepath.Join(h.dir, "woocommerce_products.csv"))
	require.True(t, os.IsNotExist(statErr))
}
