// Package transport moves partition bytes from a remote location descriptor
// to a local destination path. Two variants implement the same contract: an
// external subprocess-based syncer (preferred when installed) and a native
// in-process downloader. The variant is selected once per replication run.
package transport

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Variant names a transport implementation.
type Variant string

const (
	VariantExternal Variant = "external"
	VariantNative   Variant = "native"
)

// DefaultTool is the external syncer probed for at selection time.
const DefaultTool = "rclone"

// Transport fetches one partition into place.
type Transport interface {
	// Fetch downloads source to dest. dest is the final path; implementations
	// must never leave a truncated file there (temp-then-rename or the
	// tool's own atomicity). Partial temp artifacts are removed on error or
	// cancellation.
	Fetch(ctx context.Context, source, dest string) error

	// Variant identifies the implementation.
	Variant() Variant
}

// Descriptor records the selection made for one replication run.
type Descriptor struct {
	Variant        Variant
	ToolPath       string // external variant only
	BandwidthLimit int64  // bytes/sec, 0 = unlimited
}

func (d Descriptor) String() string {
	if d.Variant == VariantExternal {
		return fmt.Sprintf("external(%s)", d.ToolPath)
	}
	return string(VariantNative)
}

// FetchError is a failed transfer. Transient failures are eligible for
// retry; permanent ones are not.
type FetchError struct {
	Transport Variant
	Transient bool
	Detail    string
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s fetch failed (%s): %s: %v", e.Transport, kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Transport, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config controls transport selection.
type Config struct {
	ToolPath       string // external syncer binary, default "rclone"
	ForceNative    bool   // skip the probe and use the native variant
	BandwidthLimit int64  // bytes/sec for the whole run, 0 = unlimited
	Concurrency    int    // workers sharing the ceiling
}

// Select picks the transport for a run: the external tool when the probe
// finds it, the native variant otherwise. Selection happens exactly once
// per run so behavior cannot change between partitions.
//
// The ceiling is a run-wide budget. The native variant enforces it with a
// single token bucket shared by every worker; the external variant cannot
// share a bucket with its subprocesses, so the ceiling is divided evenly
// across the configured concurrency.
func Select(cfg Config) (Transport, Descriptor) {
	if !cfg.ForceNative {
		if path, ok := Probe(cfg.ToolPath); ok {
			perProc := cfg.BandwidthLimit
			if perProc > 0 && cfg.Concurrency > 1 {
				perProc /= int64(cfg.Concurrency)
				if perProc < 1 {
					perProc = 1
				}
			}
			return NewExternal(path, perProc), Descriptor{
				Variant:        VariantExternal,
				ToolPath:       path,
				BandwidthLimit: cfg.BandwidthLimit,
			}
		}
	}
	return NewNative(NewLimiter(cfg.BandwidthLimit)), Descriptor{
		Variant:        VariantNative,
		BandwidthLimit: cfg.BandwidthLimit,
	}
}

// probeTimeout bounds the version smoke run so a wedged tool cannot hang
// transport selection.
const probeTimeout = 3 * time.Second

// Probe reports whether the external syncer is usable on this host: on
// PATH (or at the given path) and able to run its version command.
func Probe(tool string) (string, bool) {
	if tool == "" {
		tool = DefaultTool
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, path, "version").Run(); err != nil {
		return "", false
	}
	return path, true
}

// ParseRate converts a human rate like "2.5MB", "500K" or "1048576" into
// bytes per second. Empty, "0" and "off" mean unlimited.
func ParseRate(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(strings.TrimSuffix(s, "/s"))
	if s == "" || s == "0" || strings.EqualFold(s, "off") {
		return 0, nil
	}

	multiplier := int64(1)
	upper := strings.ToUpper(s)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{
		{"KIB", 1 << 10}, {"KB", 1 << 10}, {"K", 1 << 10},
		{"MIB", 1 << 20}, {"MB", 1 << 20}, {"M", 1 << 20},
		{"GIB", 1 << 30}, {"GB", 1 << 30}, {"G", 1 << 30},
		{"B", 1},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.factor
			s = s[:len(s)-len(unit.suffix)]
			break
		}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid bandwidth limit %q", orig)
	}
	return int64(value * float64(multiplier)), nil
}

// FormatRate renders a bytes/sec limit in the external tool's size-suffix
// notation. Exact bytes avoid unit rounding surprises.
func FormatRate(bytesPerSec int64) string {
	return strconv.FormatInt(bytesPerSec, 10) + "B"
}
