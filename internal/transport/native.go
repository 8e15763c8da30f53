package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// locations
	_ "gocloud.dev/blob/gcsblob"  // gs:// locations
	_ "gocloud.dev/blob/s3blob"   // s3:// locations
	"gocloud.dev/gcerrors"
)

// Native is the built-in transport: a streamed read of the remote location
// written to a temp file and renamed into place on success. It is used
// whenever the external syncer is not installed.
type Native struct {
	limiter *Limiter
	httpc   *http.Client
	log     *slog.Logger
}

// NewNative creates the native transport. The limiter may be shared with
// other consumers; nil means unlimited.
func NewNative(limiter *Limiter) *Native {
	return &Native{
		limiter: limiter,
		httpc: &http.Client{
			// No overall timeout: large partitions at low ceilings take as
			// long as they take. Dial and header timeouts still apply.
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
		log: slog.With("component", "transport", "variant", "native"),
	}
}

// Variant implements Transport.
func (t *Native) Variant() Variant { return VariantNative }

// Fetch implements Transport. A crash mid-transfer leaves only a .tmp file
// that the inspector never mistakes for a complete partition.
func (t *Native) Fetch(ctx context.Context, source, dest string) error {
	reader, err := t.open(ctx, source)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &FetchError{Transport: VariantNative, Err: fmt.Errorf("create directory: %w", err)}
	}

	tempPath := dest + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return &FetchError{Transport: VariantNative, Err: fmt.Errorf("create temp file: %w", err)}
	}

	written, err := t.limiter.Copy(ctx, f, reader)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return t.classify(fmt.Errorf("copy after %d bytes: %w", written, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return &FetchError{Transport: VariantNative, Err: fmt.Errorf("close temp file: %w", err)}
	}

	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return &FetchError{Transport: VariantNative, Err: fmt.Errorf("rename into place: %w", err)}
	}

	t.log.Debug("fetched partition", "source", source, "bytes", written)
	return nil
}

// open returns a streaming reader for the remote location.
func (t *Native) open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, &FetchError{Transport: VariantNative, Err: fmt.Errorf("parse location %q: %w", source, err)}
	}

	switch u.Scheme {
	case "http", "https":
		return t.openHTTP(ctx, source)
	case "s3", "gs", "file":
		return t.openBlob(ctx, u)
	default:
		return nil, &FetchError{
			Transport: VariantNative,
			Err:       fmt.Errorf("unsupported location scheme %q", u.Scheme),
		}
	}
}

func (t *Native) openHTTP(ctx context.Context, source string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &FetchError{Transport: VariantNative, Err: err}
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, t.classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		transient := resp.StatusCode >= 500 ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusRequestTimeout
		return nil, &FetchError{
			Transport: VariantNative,
			Transient: transient,
			Detail:    resp.Status,
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return resp.Body, nil
}

// openBlob reads s3://, gs:// and file:// locations via the blob drivers.
func (t *Native) openBlob(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	var bucketURL, key string
	if u.Scheme == "file" {
		// fileblob buckets are directories; split the final element off.
		key = path.Base(u.Path)
		bucketURL = "file://" + path.Dir(u.Path)
	} else {
		key = strings.TrimPrefix(u.Path, "/")
		bucketURL = u.Scheme + "://" + u.Host
		if u.RawQuery != "" {
			bucketURL += "?" + u.RawQuery
		}
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, t.classify(fmt.Errorf("open bucket %s: %w", bucketURL, err))
	}

	reader, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		bucket.Close()
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, &FetchError{
				Transport: VariantNative,
				Detail:    "object not found",
				Err:       err,
			}
		}
		return nil, t.classify(fmt.Errorf("open object %s: %w", key, err))
	}

	return &blobReader{reader: reader, bucket: bucket}, nil
}

// classify wraps an error as a FetchError, marking network-shaped failures
// transient. Cancellation is never transient.
func (t *Native) classify(err error) *FetchError {
	fe := &FetchError{Transport: VariantNative, Err: err}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fe
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		fe.Transient = true
		return fe
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		fe.Transient = true
		return fe
	}
	switch gcerrors.Code(err) {
	case gcerrors.DeadlineExceeded, gcerrors.Internal, gcerrors.ResourceExhausted:
		fe.Transient = true
	}
	return fe
}

// blobReader ties the reader's lifetime to its bucket handle.
type blobReader struct {
	reader *blob.Reader
	bucket *blob.Bucket
}

func (r *blobReader) Read(p []byte) (int, error) { return r.reader.Read(p) }

func (r *blobReader) Close() error {
	readerErr := r.reader.Close()
	bucketErr := r.bucket.Close()
	if readerErr != nil {
		return readerErr
	}
	return bucketErr
}
