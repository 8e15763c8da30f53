package replicate

import (
	"context"
	"fmt"
	"sort"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

// CatalogAPI is the slice of the catalog collaborator the engine consumes.
type CatalogAPI interface {
	ListAsOfDates(ctx context.Context, name string) ([]catalog.Partition, error)
}

// Resolver turns a dataset name and an optional inclusive date range into
// the ordered partition set to act on.
type Resolver struct {
	api CatalogAPI
}

// NewResolver creates a resolver over the given catalog collaborator.
func NewResolver(api CatalogAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve returns the dataset's partitions clipped to [backTo, upTo],
// de-duplicated by date and sorted ascending. The catalog's ordering is
// not trusted. Range validation happens before any network call.
func (r *Resolver) Resolve(ctx context.Context, dataset string, backTo, upTo catalog.Date) ([]catalog.Partition, error) {
	if dataset == "" {
		return nil, fmt.Errorf("%w: empty dataset name", catalog.ErrNotFound)
	}
	if !backTo.IsZero() && !upTo.IsZero() && backTo.After(upTo) {
		return nil, fmt.Errorf("%w: back_to=%s up_to=%s", ErrInvalidRange, backTo, upTo)
	}

	parts, err := r.api.ListAsOfDates(ctx, dataset)
	if err != nil {
		return nil, err
	}

	// De-duplicate by date, first occurrence wins.
	seen := make(map[string]bool, len(parts))
	selected := make([]catalog.Partition, 0, len(parts))
	for _, p := range parts {
		if p.AsOfDate.IsZero() || seen[p.AsOfDate.String()] {
			continue
		}
		if !backTo.IsZero() && p.AsOfDate.Before(backTo) {
			continue
		}
		if !upTo.IsZero() && p.AsOfDate.After(upTo) {
			continue
		}
		seen[p.AsOfDate.String()] = true
		selected = append(selected, p)
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].AsOfDate.Before(selected[j].AsOfDate)
	})

	return selected, nil
}
