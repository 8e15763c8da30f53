package replicate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
	"github.com/exponential-tech/unifier-mirror/internal/mirror"
)

func TestPlanSkipAndFetch(t *testing.T) {
	root := t.TempDir()
	layout := mirror.Layout{Root: root}

	complete := catalog.Partition{AsOfDate: date("2023-01-01"), SizeBytes: 5}
	truncated := catalog.Partition{AsOfDate: date("2023-06-01"), SizeBytes: 100}
	missing := catalog.Partition{AsOfDate: date("2024-01-01")}

	// Complete partition: correct size on disk.
	writePartition(t, layout.DataPath("prices", complete.AsOfDate), []byte("12345"))
	// Truncated partition: fewer bytes than the catalog reports.
	writePartition(t, layout.DataPath("prices", truncated.AsOfDate), []byte("12"))

	plan, err := NewPlanner(layout).Plan("prices", []catalog.Partition{complete, truncated, missing})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(plan.Entries))
	}

	wantActions := []Action{ActionSkip, ActionFetch, ActionFetch}
	for i, want := range wantActions {
		if plan.Entries[i].Action != want {
			t.Errorf("entry %d action = %s, want %s", i, plan.Entries[i].Action, want)
		}
	}

	if plan.Fetches() != 2 {
		t.Errorf("Fetches = %d, want 2", plan.Fetches())
	}

	wantPath := filepath.Join(root, "prices", "asof=2023-01-01", "part-2023-01-01.dat")
	if plan.Entries[0].LocalPath != wantPath {
		t.Errorf("LocalPath = %s, want %s", plan.Entries[0].LocalPath, wantPath)
	}
}

func TestPlanChecksumMismatch(t *testing.T) {
	layout := mirror.Layout{Root: t.TempDir()}
	part := catalog.Partition{
		AsOfDate: date("2023-01-01"),
		SizeBytes: 5,
		Checksum: "sha256:0000000000000000000000000000000000000000000000000000000000000000",
	}
	writePartition(t, layout.DataPath("prices", part.AsOfDate), []byte("12345"))

	plan, err := NewPlanner(layout).Plan("prices", []catalog.Partition{part})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Entries[0].Action != ActionFetch {
		t.Error("checksum mismatch should plan a fetch")
	}
}

func writePartition(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
}
