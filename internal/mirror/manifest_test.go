package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices", "asof=2023-06-01", "_manifest.json")

	m := &Manifest{
		Dataset:   "prices",
		AsOfDate:  catalog.NewDate(2023, time.June, 1),
		Location:  "s3://bucket/prices/2023-06-01",
		ByteSize:  4096,
		Checksum:  "sha256:abcd",
		Transport: "native",
		Producer:  ProducerInfo{Name: "unifier-mirror", Version: "v0.1.0"},
		FetchedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	back, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if back.Dataset != m.Dataset || !back.AsOfDate.Equal(m.AsOfDate) ||
		back.ByteSize != m.ByteSize || back.Checksum != m.Checksum {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestWriteManifestLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "_manifest.json")

	if err := WriteManifest(path, &Manifest{Dataset: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temp file left behind after successful write")
	}
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "_manifest.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing manifest error = %v, want os.ErrNotExist", err)
	}
}
