package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFakeTool installs an executable shell script standing in for the
// external syncer and returns its path.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-syncer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExternalFetchCopies(t *testing.T) {
	// copyto <source> <dest>
	tool := writeFakeTool(t, `cp "$2" "$3"`)

	srcPath := filepath.Join(t.TempDir(), "source.dat")
	if err := os.WriteFile(srcPath, []byte("synced bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "nested", "dest.dat")

	if err := NewExternal(tool, 0).Fetch(context.Background(), srcPath, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "synced bytes" {
		t.Errorf("content = %q", got)
	}
}

func TestExternalFetchPassesBandwidthLimit(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	tool := writeFakeTool(t, `echo "$@" > `+argsFile+`; cp "$2" "$3"`)

	srcPath := filepath.Join(t.TempDir(), "s.dat")
	os.WriteFile(srcPath, []byte("x"), 0644)
	dest := filepath.Join(t.TempDir(), "d.dat")

	if err := NewExternal(tool, 2621440).Fetch(context.Background(), srcPath, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"copyto", "--bwlimit", "2621440B"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExternalFetchFailureSurfacesStderr(t *testing.T) {
	tool := writeFakeTool(t, `echo "connection reset by peer" >&2; exit 1`)

	err := NewExternal(tool, 0).Fetch(context.Background(), "remote:src", filepath.Join(t.TempDir(), "d.dat"))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if !strings.Contains(fe.Detail, "connection reset") {
		t.Errorf("detail = %q, want stderr tail", fe.Detail)
	}
	if !fe.Transient {
		t.Error("a network-shaped tool failure should be transient")
	}
}

func TestExternalFetchNotFoundIsPermanent(t *testing.T) {
	tool := writeFakeTool(t, `echo "ERROR: object not found" >&2; exit 3`)

	err := NewExternal(tool, 0).Fetch(context.Background(), "remote:src", filepath.Join(t.TempDir(), "d.dat"))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Transient {
		t.Error("a missing object should be permanent")
	}
}

func TestExternalFetchRemovesPartialOnFailure(t *testing.T) {
	// The tool writes a partial file, then fails.
	tool := writeFakeTool(t, `echo partial > "$3"; exit 1`)

	dest := filepath.Join(t.TempDir(), "d.dat")
	err := NewExternal(tool, 0).Fetch(context.Background(), "remote:src", dest)
	if err == nil {
		t.Fatal("expected failure")
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("partial file left at the final path after failure")
	}
}

func TestProbeHungTool(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	tool := writeFakeTool(t, "sleep 30")

	start := time.Now()
	if _, ok := Probe(tool); ok {
		t.Error("a wedged tool must fail the probe")
	}
	if elapsed := time.Since(start); elapsed > probeTimeout+2*time.Second {
		t.Errorf("probe returned after %v, deadline not enforced", elapsed)
	}
}

func TestClassifyToolFailure(t *testing.T) {
	permanent := []string{
		"2023/06/01 ERROR: 404 Not Found",
		"directory not found",
		"AccessDenied: permission denied",
	}
	for _, s := range permanent {
		if classifyToolFailure(s) {
			t.Errorf("%q should be permanent", s)
		}
	}

	transient := []string{
		"connection reset by peer",
		"TLS handshake timeout",
		"",
	}
	for _, s := range transient {
		if !classifyToolFailure(s) {
			t.Errorf("%q should be transient", s)
		}
	}
}
