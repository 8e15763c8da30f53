package transport

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxChunk bounds the copy buffer so pacing granularity stays fine enough
// to hold measured throughput near the ceiling over short windows.
const maxChunk = 32 * 1024

// Limiter is a run-wide byte-rate token bucket. One instance is shared by
// every worker in a replication run; the ceiling is a budget for the whole
// run, not per transfer. A nil *Limiter means unlimited.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a limiter for the given ceiling in bytes/sec.
// Zero or negative means unlimited and returns nil.
func NewLimiter(bytesPerSec int64) *Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	// Burst of 1/20th of a second keeps a fresh bucket from skewing the
	// first second of a transfer by more than ~5%.
	burst := int(bytesPerSec / 20)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

// chunkSize returns the per-iteration copy size: small enough to never
// exceed the bucket's burst, capped at maxChunk.
func (l *Limiter) chunkSize() int {
	if l == nil {
		return maxChunk
	}
	if b := l.rl.Burst(); b < maxChunk {
		return b
	}
	return maxChunk
}

// WaitN blocks until n bytes of budget are available.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	return l.rl.WaitN(ctx, n)
}

// Copy streams src to dst, charging the bucket before each chunk is
// written. It honors ctx cancellation between chunks.
func (l *Limiter) Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, l.chunkSize())
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if err := l.WaitN(ctx, n); err != nil {
				return written, err
			}
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
