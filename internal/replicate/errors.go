package replicate

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/exponential-tech/unifier-mirror/internal/transport"
)

// ErrInvalidRange is returned when back_to is after up_to. It is fatal and
// reported before any I/O.
var ErrInvalidRange = errors.New("invalid range: back_to is after up_to")

// IntegrityError means a fetched partition failed the post-transfer
// inspection. It is retried like a transient fetch failure for one extra
// cycle, then recorded as permanent.
type IntegrityError struct {
	Path     string
	WantSize int64
	GotSize  int64
	WantSum  string
	GotSum   string
}

func (e *IntegrityError) Error() string {
	if e.WantSum != "" && e.GotSum != e.WantSum {
		return fmt.Sprintf("integrity mismatch at %s: checksum %s, want %s", e.Path, e.GotSum, e.WantSum)
	}
	return fmt.Sprintf("integrity mismatch at %s: size %d, want %d", e.Path, e.GotSize, e.WantSize)
}

// isTransient reports whether an error is worth another fetch attempt.
// Validation errors, missing objects and cancellation never are.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var fe *transport.FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
