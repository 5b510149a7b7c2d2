// Package reconcile diffs a freshly scraped storefront catalog against a
// snapshot of the remote catalog.
package reconcile

import (
	"catalogsync/internal/catalog"
)

// Result is the outcome of a single reconciliation pass.
type Result struct {
	// Actions holds updates and creates in source order, followed by deletes in remote order.
	Actions []catalog.Action
	// Remote is the deduplicated remote snapshot with Matched set for every
	// record whose SKU appeared in the source.
	Remote []catalog.RemoteRecord
}

// Summary counts the actions of a pass by kind.
type Summary struct {
	Updates   int
	Creates   int
	Deletes   int
	Unchanged int
}

func (s Summary) Total() int {
	return s.Updates + s.Creates + s.Deletes
}

// Reconcile computes the actions needed to make the remote catalog match the source.
// Both inputs are deduplicated (keep-first) and remote flags are recomputed from scratch,
// flags carried in from a previous pass are ignored. The inputs are not modified.
func Reconcile(source []catalog.ProductRecord, remote []catalog.RemoteRecord) Result {
	source = catalog.DedupeProducts(source)
	remote = catalog.DedupeRemote(remote)

	index := make(map[string]int, len(remote))
	for i := range remote {
		remote[i].Matched = false
		index[remote[i].SKU] = i
	}

	var actions []catalog.Action
	for _, product := range source {
		i, ok := index[product.SKU]
		if !ok {
			// not added to the snapshot, it shows up after the next remote fetch
			actions = append(actions, catalog.Create(product.SKU, product.Price))
			continue
		}
		if !product.Price.Equal(remote[i].Price) {
			actions = append(actions, catalog.UpdatePrice(product.SKU, product.Price))
		}
		remote[i].Matched = true
	}

	for _, record := range remote {
		if !record.Matched {
			actions = append(actions, catalog.Delete(record.SKU))
		}
	}

	return Result{Actions: actions, Remote: remote}
}

func (r Result) Summary() Summary {
	var s Summary
	for _, a := range r.Actions {
		switch a.Kind {
		case catalog.ActionUpdatePrice:
			s.Updates++
		case catalog.ActionCreate:
			s.Creates++
		case catalog.ActionDelete:
			s.Deletes++
		}
	}
	matched := 0
	for _, record := range r.Remote {
		if record.Matched {
			matched++
		}
	}
	s.Unchanged = matched - s.Updates
	return s
}
