package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// stderrTailBytes is how much captured stderr is kept on failure.
const stderrTailBytes = 512

// External shells out to a subprocess-based syncer (rclone by default).
// The tool's exit code is necessary but not sufficient proof of a valid
// transfer; the orchestrator re-checks integrity after every fetch.
type External struct {
	toolPath string
	limit    int64
	log      *slog.Logger
}

// NewExternal creates the external-tool transport. toolPath must be the
// resolved binary path returned by Probe.
func NewExternal(toolPath string, limit int64) *External {
	return &External{
		toolPath: toolPath,
		limit:    limit,
		log:      slog.With("component", "transport", "variant", "external"),
	}
}

// Variant implements Transport.
func (t *External) Variant() Variant { return VariantExternal }

// Fetch implements Transport. Argument mapping:
//
//	<tool> copyto <source> <dest> [--bwlimit <N>B]
//
// Output is captured, not streamed; the stderr tail is surfaced on failure.
func (t *External) Fetch(ctx context.Context, source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &FetchError{Transport: VariantExternal, Err: fmt.Errorf("create directory: %w", err)}
	}

	args := []string{"copyto", source, dest}
	if t.limit > 0 {
		args = append(args, "--bwlimit", FormatRate(t.limit))
	}

	cmd := exec.CommandContext(ctx, t.toolPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.log.Debug("running syncer", "source", source, "dest", dest)

	if err := cmd.Run(); err != nil {
		// The tool may have left a partial file at the final path; remove
		// it so the inspector keeps the partition a fetch candidate.
		os.Remove(dest)

		if ctx.Err() != nil {
			return &FetchError{Transport: VariantExternal, Detail: "cancelled", Err: ctx.Err()}
		}

		detail := stderrTail(stderr.Bytes())
		return &FetchError{
			Transport: VariantExternal,
			Transient: classifyToolFailure(detail),
			Detail:    detail,
			Err:       err,
		}
	}

	return nil
}

// classifyToolFailure decides retry eligibility from the tool's stderr.
// Missing objects are permanent; everything else (network flaps, throttling,
// remote hiccups) is worth another attempt.
func classifyToolFailure(detail string) bool {
	lower := strings.ToLower(detail)
	for _, marker := range []string{"not found", "no such", "404", "directory not found", "access denied", "permission denied"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// stderrTail returns the last stderrTailBytes of captured stderr.
func stderrTail(out []byte) string {
	out = bytes.TrimSpace(out)
	if len(out) > stderrTailBytes {
		out = out[len(out)-stderrTailBytes:]
	}
	return string(out)
}
