package replicate

import (
	"fmt"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
	"github.com/exponential-tech/unifier-mirror/internal/mirror"
)

// Planner inspects the local mirror and tags each resolved partition with
// skip or fetch. It reads the filesystem but never mutates it, and never
// touches the network.
type Planner struct {
	layout mirror.Layout
}

// NewPlanner creates a planner rooted at the mirror target directory.
func NewPlanner(layout mirror.Layout) *Planner {
	return &Planner{layout: layout}
}

// Plan computes the action for every partition. A partially-written local
// file (size or checksum mismatch) is tagged fetch, and the fetch always
// overwrites; nothing is ever appended.
func (p *Planner) Plan(dataset string, parts []catalog.Partition) (Plan, error) {
	plan := Plan{
		Dataset: dataset,
		Entries: make([]PlanEntry, 0, len(parts)),
	}

	for _, part := range parts {
		path := p.layout.DataPath(dataset, part.AsOfDate)
		complete, err := mirror.Verify(part, path)
		if err != nil {
			return Plan{}, fmt.Errorf("inspect %s asof=%s: %w", dataset, part.AsOfDate, err)
		}

		action := ActionFetch
		if complete {
			action = ActionSkip
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			Partition: part,
			Action:    action,
			LocalPath: path,
		})
	}

	return plan, nil
}
