// Package mirror defines the on-disk layout of a local dataset mirror and
// the integrity inspection used to decide whether a partition is already
// complete. The filesystem is the source of truth; manifest sidecars are
// advisory.
package mirror

import (
	"fmt"
	"path/filepath"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

// Layout maps partitions to deterministic paths under a target directory.
// The same (dataset, as-of date) always addresses the same file, so
// repeated replication runs resume instead of re-fetching.
type Layout struct {
	Root string
}

// PartitionDir returns the directory holding one partition.
func (l Layout) PartitionDir(dataset string, asOf catalog.Date) string {
	return filepath.Join(l.Root, dataset, fmt.Sprintf("asof=%s", asOf))
}

// DataPath returns the final path of the partition's data file.
func (l Layout) DataPath(dataset string, asOf catalog.Date) string {
	return filepath.Join(l.PartitionDir(dataset, asOf), fmt.Sprintf("part-%s.dat", asOf))
}

// ManifestPath returns the path of the partition's manifest sidecar.
func (l Layout) ManifestPath(dataset string, asOf catalog.Date) string {
	return filepath.Join(l.PartitionDir(dataset, asOf), "_manifest.json")
}
