// Package catalog is the client for the Unifier point-in-time data catalog.
// It resolves dataset names to as-of dated partition descriptors and exposes
// the metadata browsing and query surface of the service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/exponential-tech/unifier-mirror/internal/logging"
)

var (
	// ErrNotFound is returned when the catalog has no dataset by that name.
	ErrNotFound = errors.New("dataset not found")

	// ErrUnauthorized is returned when the catalog rejects the credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the catalog service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog request failed with status %d: %s", e.StatusCode, e.Message)
}

// Credentials authenticate requests against the catalog service. They are
// passed explicitly at construction so concurrent clients with different
// identities stay independent.
type Credentials struct {
	User  string
	Token string
}

// Config configures a catalog client.
type Config struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
}

// Client talks to the Unifier catalog service over HTTP.
type Client struct {
	baseURL string
	creds   Credentials
	httpc   *http.Client
	log     *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		httpc:   &http.Client{Timeout: timeout},
		log:     logging.Component("catalog"),
	}
}

// Partition describes one immutable snapshot of a dataset as reported by
// the catalog. SizeBytes and Checksum are optional; zero values mean the
// catalog did not report them.
type Partition struct {
	AsOfDate  Date
	Location  string
	SizeBytes int64
	Checksum  string // "sha256:<hex>" when present
}

// CatalogDescriptor describes a dataset in the catalog.
type CatalogDescriptor struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Owner          string `json:"owner,omitempty"`
	PartitionCount int64  `json:"partition_count,omitempty"`
	LatestAsOf     Date   `json:"latest_asof_date,omitempty"`
}

// ListAsOfDates returns the available as-of dates for a dataset, in the
// order the service reports them. Callers must not assume the list is
// sorted or free of duplicates.
func (c *Client) ListAsOfDates(ctx context.Context, name string) ([]Partition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty dataset name", ErrNotFound)
	}

	body, err := c.post(ctx, "/get_asof_date", map[string]any{
		"name":  name,
		"user":  c.creds.User,
		"token": c.creds.Token,
	})
	if err != nil {
		return nil, err
	}

	rows, err := flattenRows(body)
	if err != nil {
		return nil, fmt.Errorf("decode as-of dates for %s: %w", name, err)
	}

	parts := make([]Partition, 0, len(rows))
	for _, row := range rows {
		var p Partition
		if raw, ok := row["asof_date"]; ok {
			if err := json.Unmarshal(raw, &p.AsOfDate); err != nil {
				return nil, fmt.Errorf("decode as-of date: %w", err)
			}
		}
		if p.AsOfDate.IsZero() {
			continue
		}
		if raw, ok := row["location"]; ok {
			_ = json.Unmarshal(raw, &p.Location)
		}
		if raw, ok := row["size_bytes"]; ok {
			_ = json.Unmarshal(raw, &p.SizeBytes)
		}
		if raw, ok := row["checksum"]; ok {
			_ = json.Unmarshal(raw, &p.Checksum)
		}
		parts = append(parts, p)
	}

	c.log.Debug("listed as-of dates", "dataset", name, "count", len(parts))
	return parts, nil
}

// GetCatalogMetadata returns the descriptor for one dataset.
func (c *Client) GetCatalogMetadata(ctx context.Context, name string) (*CatalogDescriptor, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty dataset name", ErrNotFound)
	}

	body, err := c.post(ctx, "/describe_catalog", map[string]any{
		"name":  name,
		"user":  c.creds.User,
		"token": c.creds.Token,
	})
	if err != nil {
		return nil, err
	}

	var desc CatalogDescriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("decode catalog descriptor for %s: %w", name, err)
	}
	return &desc, nil
}

// ListCatalogs returns descriptors for every dataset visible to the caller.
func (c *Client) ListCatalogs(ctx context.Context) ([]CatalogDescriptor, error) {
	body, err := c.post(ctx, "/list_catalogs", map[string]any{
		"user":  c.creds.User,
		"token": c.creds.Token,
	})
	if err != nil {
		return nil, err
	}

	var descs []CatalogDescriptor
	if err := json.Unmarshal(body, &descs); err != nil {
		return nil, fmt.Errorf("decode catalog list: %w", err)
	}
	return descs, nil
}

// QueryRequest selects rows from a dataset.
type QueryRequest struct {
	Name        string
	Key         string
	Keys        []string
	AsOfDate    Date
	AsOfBackTo  Date
	BackTo      Date
	UpTo        Date
	Limit       int
	DisableView bool
}

// Query runs a point-in-time query and returns the raw rows. Tabular
// conversion is the caller's concern.
func (c *Client) Query(ctx context.Context, req QueryRequest) ([]map[string]json.RawMessage, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: empty dataset name", ErrNotFound)
	}

	payload := map[string]any{
		"name":         req.Name,
		"user":         c.creds.User,
		"token":        c.creds.Token,
		"disable_view": req.DisableView,
	}
	if req.Key != "" {
		payload["key"] = req.Key
	}
	if len(req.Keys) > 0 {
		payload["keys"] = req.Keys
	}
	if !req.AsOfDate.IsZero() {
		payload["asof_date"] = req.AsOfDate.String()
	}
	if !req.AsOfBackTo.IsZero() {
		payload["asof_back_to"] = req.AsOfBackTo.String()
	}
	if !req.BackTo.IsZero() {
		payload["back_to"] = req.BackTo.String()
	}
	if !req.UpTo.IsZero() {
		payload["up_to"] = req.UpTo.String()
	}
	if req.Limit > 0 {
		payload["limit"] = req.Limit
	}

	body, err := c.post(ctx, "", payload)
	if err != nil {
		return nil, err
	}

	return flattenRows(body)
}

// post sends a JSON payload and returns the decoded response body.
func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError maps a non-200 response onto the error taxonomy. The service
// reports failures as {"error": "..."} bodies.
func (c *Client) statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case strings.Contains(strings.ToLower(msg), "not found"),
		strings.Contains(strings.ToLower(msg), "unknown dataset"):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// flattenRows decodes the service's row encoding: a list of items, where
// each item is either an object or a list of single-key objects that must
// be merged into one row.
func flattenRows(body []byte) ([]map[string]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]map[string]json.RawMessage, 0, len(items))
	for _, item := range items {
		row := map[string]json.RawMessage{}
		var fragments []map[string]json.RawMessage
		if err := json.Unmarshal(item, &fragments); err == nil {
			for _, frag := range fragments {
				for k, v := range frag {
					row[k] = v
				}
			}
		} else if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
