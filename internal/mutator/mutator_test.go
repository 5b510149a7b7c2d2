package mutator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"catalogsync/internal/catalog"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/woocommerce"
	"catalogsync/internal/woocommerce/woocommercetest"

	"github.com/stretchr/testify/require"
)

type fakeDetails map[string]catalog.ProductDetail

func (f fakeDetails) ProductDetail(ctx context.Context, sku string) (catalog.ProductDetail, error) {
	detail, ok := f[sku]
	if !ok {
		return catalog.ProductDetail{}, errors.New("product not found")
	}
	return detail, nil
}

func setup(t *testing.T, details fakeDetails, opts Options) (*woocommercetest.Server, Mutator, *telemetry.Recorder) {
	server := woocommercetest.NewServer()
	t.Cleanup(server.Close)

	tel := &telemetry.Recorder{}
	client, err := woocommerce.NewClient(server.Options(), tel)
	require.NoError(t, err)
	return server, New(client, details, opts, tel), tel
}

func TestApply(t *testing.T) {
	details := fakeDetails{
		"NEW": {SKU: "NEW", Name: "New thing", Category: "tools"},
	}
	server, m, _ := setup(t, details, Options{})
	server.AddCategory("Tools")
	updateId := server.AddProduct("UPD", "10")
	server.AddProduct("OLD", "5")

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.UpdatePrice("UPD", catalog.MustPrice("12")),
		catalog.Create("NEW", catalog.MustPrice("20")),
		catalog.Delete("OLD"),
	})
	require.Len(t, outcomes, 3)
	require.Empty(t, Failures(outcomes))
	require.Equal(t, updateId, outcomes[0].RemoteID)
	require.NotZero(t, outcomes[1].RemoteID)

	products := server.Products()
	require.Len(t, products, 2)
	require.Equal(t, "UPD", products[0].SKU)
	require.Equal(t, "12", products[0].RegularPrice)
	require.Equal(t, "NEW", products[1].SKU)
	require.Equal(t, "20", products[1].RegularPrice)

	created, ok := server.Created(outcomes[1].RemoteID)
	require.True(t, ok)
	require.Equal(t, []woocommerce.CategoryRef{{ID: 100}}, created.Categories)
}

func TestApplyLookupFailures(t *testing.T) {
	server, m, tel := setup(t, fakeDetails{}, Options{})
	server.AddProduct("DUP", "1")
	server.AddProduct("DUP", "1")
	keep := server.AddProduct("KEEP", "1")

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.UpdatePrice("MISSING", catalog.MustPrice("1")),
		catalog.Delete("DUP"),
		catalog.UpdatePrice("KEEP", catalog.MustPrice("2")),
	})
	require.ErrorIs(t, outcomes[0].Err, ErrLookupMiss)
	require.ErrorIs(t, outcomes[1].Err, ErrLookupAmbiguous)
	require.NoError(t, outcomes[2].Err)
	require.Equal(t, keep, outcomes[2].RemoteID)

	require.Len(t, server.Products(), 3)
	require.Len(t, server.MutatingCalls(), 1)
	require.Len(t, tel.Reports("warning"), 2)
}

func TestApplyCreateWithoutDetail(t *testing.T) {
	server, m, _ := setup(t, fakeDetails{}, Options{})

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.Create("GHOST", catalog.MustPrice("1")),
	})
	require.Len(t, outcomes, 1)
	require.ErrorContains(t, outcomes[0].Err, "product detail")
	require.Empty(t, server.MutatingCalls())
}

func TestApplyCreateUnknownCategory(t *testing.T) {
	details := fakeDetails{
		"NEW": {SKU: "NEW", Name: "New", Category: "Lighting"},
	}
	server, m, tel := setup(t, details, Options{})
	server.AddCategory("Paint")

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.Create("NEW", catalog.MustPrice("3")),
	})
	require.NoError(t, outcomes[0].Err)

	created, ok := server.Created(outcomes[0].RemoteID)
	require.True(t, ok)
	require.Empty(t, created.Categories)

	var warned bool
	for _, r := range tel.Reports("warning") {
		if strings.HasSuffix(r.ID, report_mutator_create) {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestApplyContinuesAfterRemoteErrors(t *testing.T) {
	server, m, _ := setup(t, fakeDetails{}, Options{})
	server.AddProduct("A", "1")
	server.AddProduct("B", "1")
	server.Fail = func(r *http.Request) int {
		if r.Method == http.MethodPut {
			return http.StatusInternalServerError
		}
		return 0
	}

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.UpdatePrice("A", catalog.MustPrice("2")),
		catalog.Delete("B"),
	})

	var statusErr *woocommerce.StatusError
	require.True(t, errors.As(outcomes[0].Err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.NoError(t, outcomes[1].Err)
	require.Len(t, server.Products(), 1)

	// never retried
	puts := 0
	for _, c := range server.MutatingCalls() {
		if c.Method == http.MethodPut {
			puts++
		}
	}
	require.Equal(t, 1, puts)
}

func TestApplyDryRun(t *testing.T) {
	server, m, _ := setup(t, fakeDetails{}, Options{DryRun: true})
	server.AddProduct("A", "1")

	actions := []catalog.Action{
		catalog.UpdatePrice("A", catalog.MustPrice("2")),
		catalog.Create("B", catalog.MustPrice("2")),
		catalog.Delete("A"),
	}
	outcomes := m.Apply(context.Background(), actions)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		require.Equal(t, actions[i], o.Action)
		require.NoError(t, o.Err)
	}
	require.Empty(t, server.Calls())
}

// blockingRemote never answers a lookup before the context ends.
type blockingRemote struct{}

func (blockingRemote) LookupSKU(ctx context.Context, sku string) ([]woocommerce.Product, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingRemote) UpdatePrice(ctx context.Context, id int64, price catalog.Price) (woocommerce.Product, error) {
	return woocommerce.Product{}, nil
}

func (blockingRemote) CreateProduct(ctx context.Context, product woocommerce.NewProduct) (woocommerce.Product, error) {
	return woocommerce.Product{}, nil
}

func (blockingRemote) DeleteProduct(ctx context.Context, id int64) error {
	return nil
}

func (blockingRemote) ResolveCategory(ctx context.Context, name string) (woocommerce.Category, bool, error) {
	return woocommerce.Category{}, false, nil
}

func TestApplyRejectsEmptySku(t *testing.T) {
	server, m, tel := setup(t, fakeDetails{"": {Name: "blank"}}, Options{})
	server.AddProduct("", "1")

	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.UpdatePrice("", catalog.MustPrice("5")),
		catalog.Delete(" "),
		catalog.Create("", catalog.MustPrice("5")),
	})
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		require.ErrorIs(t, o.Err, catalog.ErrEmptySku)
	}
	require.Empty(t, server.Calls())
	require.Len(t, server.Products(), 1)
	require.Equal(t, "1", server.Products()[0].RegularPrice)
	require.Len(t, tel.Reports("broken"), 3)
}

// blockingDetails never finishes a detail scrape before the context ends.
type blockingDetails struct{}

func (blockingDetails) ProductDetail(ctx context.Context, sku string) (catalog.ProductDetail, error) {
	<-ctx.Done()
	return catalog.ProductDetail{}, ctx.Err()
}

func TestApplyDetailTimeout(t *testing.T) {
	server := woocommercetest.NewServer()
	defer server.Close()
	client, err := woocommerce.NewClient(server.Options(), &telemetry.Recorder{})
	require.NoError(t, err)
	m := New(client, blockingDetails{}, Options{RequestTimeout: 20 * time.Millisecond}, &telemetry.Recorder{})

	start := time.Now()
	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.Create("NEW", catalog.MustPrice("1")),
	})
	require.Less(t, time.Since(start), 2*time.Second)
	require.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
	require.Empty(t, server.MutatingCalls())
}

func TestApplyRequestTimeout(t *testing.T) {
	m := New(blockingRemote{}, fakeDetails{}, Options{RequestTimeout: 20 * time.Millisecond}, &telemetry.Recorder{})

	start := time.Now()
	outcomes := m.Apply(context.Background(), []catalog.Action{
		catalog.Delete("A"),
		catalog.Delete("B"),
	})
	require.Less(t, time.Since(start), 2*time.Second)
	for _, o := range outcomes {
		require.ErrorIs(t, o.Err, context.DeadlineExceeded)
	}
}
