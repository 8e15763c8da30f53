package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

// Manifest is the advisory sidecar written next to a fetched partition.
// The Inspector never trusts it over the filesystem check; it exists for
// humans and downstream tooling.
type Manifest struct {
	Dataset   string       `json:"dataset"`
	AsOfDate  catalog.Date `json:"asof_date"`
	Location  string       `json:"source_location"`
	ByteSize  int64        `json:"byte_size"`
	Checksum  string       `json:"checksum,omitempty"`
	Transport string       `json:"transport"`
	Producer  ProducerInfo `json:"producer"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// ProducerInfo identifies the software that wrote the partition.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WriteManifest persists the manifest atomically via temp write + rename.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}

// ReadManifest loads a manifest sidecar if present. A missing manifest is
// reported as os.ErrNotExist.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
