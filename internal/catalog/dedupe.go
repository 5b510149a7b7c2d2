package catalog

// Dedupe removes records sharing a key, keeping the first occurrence in input order.
func Dedupe[T any](records []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func DedupeProducts(records []ProductRecord) []ProductRecord {
	return Dedupe(records, func(r ProductRecord) string { return r.SKU })
}

func DedupeRemote(records []RemoteRecord) []RemoteRecord {
	return Dedupe(records, func(r RemoteRecord) string { return r.SKU })
}
