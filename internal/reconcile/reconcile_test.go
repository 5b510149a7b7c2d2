package reconcile

import (
	"fmt"
	"testing"

	"catalogsync/internal/catalog"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var priceComparer = cmp.Comparer(func(a, b catalog.Price) bool {
	return a.Equal(b)
})

func price(s string) catalog.Price {
	return catalog.MustPrice(s)
}

// applyAll projects the remote snapshot as if every action had succeeded remotely
// and a fresh snapshot was then fetched.
func applyAll(r Result) []catalog.RemoteRecord {
	prices := map[string]catalog.Price{}
	for _, a := range r.Actions {
		if a.Kind != catalog.ActionDelete {
			prices[a.SKU] = a.Price
		}
	}
	var out []catalog.RemoteRecord
	for _, record := range r.Remote {
		if !record.Matched {
			continue
		}
		if p, ok := prices[record.SKU]; ok {
			record.Price = p
		}
		out = append(out, catalog.RemoteRecord{SKU: record.SKU, Price: record.Price})
	}
	for _, a := range r.Actions {
		if a.Kind == catalog.ActionCreate {
			out = append(out, catalog.RemoteRecord{SKU: a.SKU, Price: a.Price})
		}
	}
	return out
}

func TestReconcileExampleScenario(t *testing.T) {
	source := []catalog.ProductRecord{
		{SKU: "A", Price: price("10.00")},
		{SKU: "B", Price: price("20.00")},
	}
	remote := []catalog.RemoteRecord{
		{SKU: "A", Price: price("10.00")},
		{SKU: "C", Price: price("5.00")},
	}

	result := Reconcile(source, remote)

	expectedActions := []catalog.Action{
		catalog.Create("B", price("20.00")),
		catalog.Delete("C"),
	}
	diff := cmp.Diff(expectedActions, result.Actions, priceComparer)
	if diff != "" {
		t.Fatal(diff)
	}

	expectedRemote := []catalog.RemoteRecord{
		{SKU: "A", Price: price("10.00"), Matched: true},
		{SKU: "C", Price: price("5.00"), Matched: false},
	}
	diff = cmp.Diff(expectedRemote, result.Remote, priceComparer)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Equal(t, Summary{Creates: 1, Deletes: 1, Unchanged: 1}, result.Summary())
}

func TestReconcileCases(t *testing.T) {
	testCases := []struct {
		name     string
		source   []catalog.ProductRecord
		remote   []catalog.RemoteRecord
		expected []catalog.Action
	}{
		{
			name:     "both empty",
			expected: nil,
		},
		{
			name: "empty source deletes everything",
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("1")},
				{SKU: "B", Price: price("2"), Matched: true},
			},
			expected: []catalog.Action{
				catalog.Delete("A"),
				catalog.Delete("B"),
			},
		},
		{
			name: "empty remote creates everything",
			source: []catalog.ProductRecord{
				{SKU: "A", Price: price("1")},
				{SKU: "B"},
			},
			expected: []catalog.Action{
				catalog.Create("A", price("1")),
				catalog.Create("B", catalog.Price{}),
			},
		},
		{
			name: "trailing zeros are not a price change",
			source: []catalog.ProductRecord{
				{SKU: "A", Price: price("10")},
				{SKU: "B", Price: price("7.5")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("10.00")},
				{SKU: "B", Price: price("7.50")},
			},
			expected: nil,
		},
		{
			name: "changed price is updated",
			source: []catalog.ProductRecord{
				{SKU: "A", Price: price("12.99")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("10.00")},
			},
			expected: []catalog.Action{
				catalog.UpdatePrice("A", price("12.99")),
			},
		},
		{
			name: "absent against present is an update",
			source: []catalog.ProductRecord{
				{SKU: "A"},
				{SKU: "B", Price: price("3")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("1")},
				{SKU: "B"},
			},
			expected: []catalog.Action{
				catalog.UpdatePrice("A", catalog.Price{}),
				catalog.UpdatePrice("B", price("3")),
			},
		},
		{
			name: "absent against absent is unchanged",
			source: []catalog.ProductRecord{
				{SKU: "A"},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A"},
			},
			expected: nil,
		},
		{
			name: "duplicate source skus only act once, first wins",
			source: []catalog.ProductRecord{
				{SKU: "A", Price: price("2")},
				{SKU: "A", Price: price("3")},
				{SKU: "N", Price: price("4")},
				{SKU: "N", Price: price("5")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("1")},
			},
			expected: []catalog.Action{
				catalog.UpdatePrice("A", price("2")),
				catalog.Create("N", price("4")),
			},
		},
		{
			name: "duplicate remote skus are deleted once",
			source: []catalog.ProductRecord{
				{SKU: "A", Price: price("1")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "A", Price: price("1")},
				{SKU: "Z", Price: price("1")},
				{SKU: "A", Price: price("9")},
				{SKU: "Z", Price: price("2")},
			},
			expected: []catalog.Action{
				catalog.Delete("Z"),
			},
		},
		{
			name: "updates and creates follow source order, deletes come last",
			source: []catalog.ProductRecord{
				{SKU: "new-1", Price: price("1")},
				{SKU: "B", Price: price("20")},
				{SKU: "new-2", Price: price("2")},
			},
			remote: []catalog.RemoteRecord{
				{SKU: "gone-1", Price: price("1")},
				{SKU: "B", Price: price("19")},
				{SKU: "gone-2", Price: price("1")},
			},
			expected: []catalog.Action{
				catalog.Create("new-1", price("1")),
				catalog.UpdatePrice("B", price("20")),
				catalog.Create("new-2", price("2")),
				catalog.Delete("gone-1"),
				catalog.Delete("gone-2"),
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			result := Reconcile(test.source, test.remote)
			diff := cmp.Diff(test.expected, result.Actions, priceComparer)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestReconcileDoesNotTrustStaleFlags(t *testing.T) {
	remote := []catalog.RemoteRecord{
		{SKU: "A", Price: price("1"), Matched: true},
		{SKU: "B", Price: price("1"), Matched: true},
	}
	source := []catalog.ProductRecord{
		{SKU: "A", Price: price("1")},
	}

	result := Reconcile(source, remote)

	require.Equal(t, []catalog.Action{catalog.Delete("B")}, result.Actions)
	require.True(t, result.Remote[0].Matched)
	require.False(t, result.Remote[1].Matched)

	// the caller's slice is left alone
	require.True(t, remote[1].Matched)
}

func generateCatalogs(n int) ([]catalog.ProductRecord, []catalog.RemoteRecord) {
	var source []catalog.ProductRecord
	var remote []catalog.RemoteRecord
	for i := 0; i < n; i++ {
		sku := fmt.Sprintf("SKU-%03d", i)
		switch i % 4 {
		case 0:
			// only on the storefront
			source = append(source, catalog.ProductRecord{SKU: sku, Price: price(fmt.Sprintf("%d.50", i))})
		case 1:
			// only on the remote
			remote = append(remote, catalog.RemoteRecord{SKU: sku, Price: price(fmt.Sprintf("%d", i))})
		case 2:
			// on both with a different price
			source = append(source, catalog.ProductRecord{SKU: sku, Price: price(fmt.Sprintf("%d.99", i))})
			remote = append(remote, catalog.RemoteRecord{SKU: sku, Price: price(fmt.Sprintf("%d.00", i))})
		case 3:
			// on both with the same price
			source = append(source, catalog.ProductRecord{SKU: sku, Price: price(fmt.Sprintf("%d", i))})
			remote = append(remote, catalog.RemoteRecord{SKU: sku, Price: price(fmt.Sprintf("%d.00", i))})
		}
	}
	return source, remote
}

func TestReconcileProperties(t *testing.T) {
	source, remote := generateCatalogs(200)
	result := Reconcile(source, remote)

	inSource := map[string]catalog.ProductRecord{}
	for _, p := range source {
		inSource[p.SKU] = p
	}
	inRemote := map[string]catalog.RemoteRecord{}
	for _, r := range remote {
		inRemote[r.SKU] = r
	}

	perSku := map[string][]catalog.Action{}
	for _, a := range result.Actions {
		perSku[a.SKU] = append(perSku[a.SKU], a)
	}

	// completeness & price convergence
	for sku, p := range inSource {
		r, ok := inRemote[sku]
		actions := perSku[sku]
		switch {
		case !ok:
			require.Len(t, actions, 1, sku)
			require.Equal(t, catalog.ActionCreate, actions[0].Kind)
		case !p.Price.Equal(r.Price):
			require.Len(t, actions, 1, sku)
			require.Equal(t, catalog.ActionUpdatePrice, actions[0].Kind)
			require.True(t, actions[0].Price.Equal(p.Price))
		default:
			require.Empty(t, actions, sku)
		}
	}
	for sku := range inRemote {
		if _, ok := inSource[sku]; ok {
			continue
		}
		actions := perSku[sku]
		require.Len(t, actions, 1, sku)
		require.Equal(t, catalog.ActionDelete, actions[0].Kind)
	}

	// flag invariant
	for _, r := range result.Remote {
		_, ok := inSource[r.SKU]
		require.Equal(t, ok, r.Matched, r.SKU)
	}

	require.Equal(t, Summary{Updates: 50, Creates: 50, Deletes: 50, Unchanged: 50}, result.Summary())
	require.Equal(t, 150, result.Summary().Total())
}

func TestReconcileIdempotence(t *testing.T) {
	source, remote := generateCatalogs(40)
	first := Reconcile(source, remote)
	require.NotEmpty(t, first.Actions)

	second := Reconcile(source, applyAll(first))
	require.Empty(t, second.Actions)
	for _, r := range second.Remote {
		require.True(t, r.Matched, r.SKU)
	}
}
