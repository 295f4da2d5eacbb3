package concentration

import (
	"strings"

	"github.com/bobmcallan/holdfast/internal/models"
)

// Resolver walks the mapping graph depth first. It holds no state beyond the
// immutable MappingStore and is safe for concurrent use.
type Resolver struct {
	store *MappingStore
}

// NewResolver creates a resolver over store.
func NewResolver(store *MappingStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps symbol to its ultimate underlyings with cumulative factors.
// An unmapped symbol is its own underlying with factor 1. A symbol reached
// again on the current path is treated as terminal, so cycles truncate.
func (r *Resolver) Resolve(symbol string) []models.Exposure {
	return r.resolve(strings.ToUpper(strings.TrimSpace(symbol)), nil)
}

// visitedPath is the set of symbols on the current DFS path. Each branch
// extends its own copy so siblings never block each other.
type visitedPath map[string]struct{}

func (v visitedPath) with(symbol string) visitedPath {
	next := make(visitedPath, len(v)+1)
	for s := range v {
		next[s] = struct{}{}
	}
	next[symbol] = struct{}{}
	return next
}

func (r *Resolver) resolve(symbol string, visited visitedPath) []models.Exposure {
	if _, seen := visited[symbol]; seen {
		return []models.Exposure{{Underlying: symbol, Factor: 1.0}}
	}

	mappings, ok := r.store.Lookup(symbol)
	if !ok {
		return []models.Exposure{{Underlying: symbol, Factor: 1.0}}
	}

	path := visited.with(symbol)
	var results []models.Exposure
	for _, m := range mappings {
		for _, sub := range r.resolve(strings.ToUpper(m.Underlying), path) {
			results = append(results, models.Exposure{
				Underlying: sub.Underlying,
				Factor:     m.Factor * sub.Factor,
			})
		}
	}
	return results
}
