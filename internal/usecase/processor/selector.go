package processor

import (
	"sort"

	"image-ingest/internal/domain"
	"image-ingest/internal/resource"
)

// Selector filters the strategy catalog against the current resource
// snapshot, input size and detected format.
type Selector struct {
	catalog []Strategy
}

func NewSelector(catalog []Strategy) *Selector {
	sorted := make([]Strategy, len(catalog))
	copy(sorted, catalog)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Selector{catalog: sorted}
}

// Select returns the eligible strategies in ascending priority order.
// When nothing is eligible the last-resort tier is returned anyway so
// the cascade always has at least one candidate.
func (s *Selector) Select(size int64, format domain.ImageFormat, stats resource.Stats) []Strategy {
	var candidates []Strategy
	for _, st := range s.catalog {
		if eligible(st, size, format, stats) {
			candidates = append(candidates, st)
		}
	}

	if len(candidates) == 0 && len(s.catalog) > 0 {
		candidates = append(candidates, s.catalog[len(s.catalog)-1])
	}
	return candidates
}

func eligible(st Strategy, size int64, format domain.ImageFormat, stats resource.Stats) bool {
	return stats.SystemAvailableMB >= st.MemoryRequiredMB &&
		size <= st.MaxFileSize &&
		st.Accepts(format)
}
