// Package replicate turns a dataset name and an as-of date range into a
// complete, idempotent, resumable local mirror. Partitions are immutable
// once published, so anything verified complete locally is never fetched
// again.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/exponential-tech/unifier-mirror/internal/logging"
	"github.com/exponential-tech/unifier-mirror/internal/metrics"
	"github.com/exponential-tech/unifier-mirror/internal/mirror"
	"github.com/exponential-tech/unifier-mirror/internal/transport"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Options tune a Replicator. Zero values get defaults.
type Options struct {
	Workers             int           // concurrent fetches, default 4
	RetryAttempts       int           // attempts per partition, default 3
	RetryInitialBackoff time.Duration // first backoff interval, default 500ms
	WriteManifests      bool          // write advisory _manifest.json sidecars

	// TransportConfig controls per-run transport selection.
	TransportConfig transport.Config

	// Transport overrides selection entirely when non-nil. Used by tests.
	Transport transport.Transport
}

// Replicator is the engine entry point. One Replicator may serve many
// Replicate calls; per-run state lives on the stack of each call.
// Concurrent runs against the same target directory are the caller's
// responsibility to serialize.
type Replicator struct {
	api      CatalogAPI
	resolver *Resolver
	opts     Options
	log      *slog.Logger
}

// New creates a Replicator over the given catalog collaborator.
func New(api CatalogAPI, opts Options) *Replicator {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 3
	}
	if opts.RetryInitialBackoff <= 0 {
		opts.RetryInitialBackoff = 500 * time.Millisecond
	}
	return &Replicator{
		api:      api,
		resolver: NewResolver(api),
		opts:     opts,
		log:      logging.Component("replicator"),
	}
}

// Replicate materializes the requested date range under the target
// location. Request-level validation errors return immediately with no
// result; partition-level failures are isolated and aggregated, so the
// caller always learns the outcome of every partition in range.
func (r *Replicator) Replicate(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	log := r.log.With("run_id", runID, "dataset", req.Dataset)
	started := time.Now()

	parts, err := r.resolver.Resolve(ctx, req.Dataset, req.BackTo, req.UpTo)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:   runID,
		Dataset: req.Dataset,
		Started: started,
	}

	if len(parts) == 0 {
		// An empty range is a valid no-op, not an error.
		result.Finished = time.Now()
		log.Info("no partitions in range", "back_to", req.BackTo.String(), "up_to", req.UpTo.String())
		return result, nil
	}

	layout := mirror.Layout{Root: req.TargetDir}
	plan, err := NewPlanner(layout).Plan(req.Dataset, parts)
	if err != nil {
		return nil, err
	}

	tr, desc := r.selectTransport(req)
	result.Transport = desc
	if m := metrics.Get(); m != nil {
		m.SetBandwidthCeiling(float64(desc.BandwidthLimit))
	}

	log.Info("starting replication",
		"partitions", len(plan.Entries),
		"fetches", plan.Fetches(),
		"transport", desc.String(),
		"workers", r.opts.Workers,
		"bwlimit", desc.BandwidthLimit,
	)

	// Results are indexed by plan position so the report stays in
	// ascending as-of order no matter which worker finishes first.
	results := make([]PartitionResult, len(plan.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, entry := range plan.Entries {
		if entry.Action == ActionSkip {
			results[i] = PartitionResult{AsOfDate: entry.Partition.AsOfDate, Outcome: OutcomeSkipped}
			if m := metrics.Get(); m != nil {
				m.IncPartitionsSkipped(r.labels(req.Dataset, desc))
			}
			continue
		}
		g.Go(func() error {
			results[i] = r.fetchPartition(gctx, tr, desc, req.Dataset, entry)
			// Partition failures never abort the run.
			return nil
		})
	}
	_ = g.Wait()

	result.Partitions = results
	result.Finished = time.Now()

	succeeded, skipped, failed := result.Counts()
	elapsed := result.Finished.Sub(result.Started)
	log.Info("replication finished",
		"succeeded", succeeded,
		"skipped", skipped,
		"failed", failed,
		"bytes", result.BytesFetched(),
		"duration", elapsed.String(),
		"complete", result.Complete(),
	)

	if ctx.Err() != nil {
		// Cancellation leaves a valid partial mirror; the same request
		// resumes where this run stopped.
		return result, ctx.Err()
	}
	return result, nil
}

// selectTransport applies the once-per-run selection policy.
func (r *Replicator) selectTransport(req Request) (transport.Transport, transport.Descriptor) {
	limit := req.BandwidthLimit
	if limit <= 0 {
		limit = r.opts.TransportConfig.BandwidthLimit
	}

	if r.opts.Transport != nil {
		return r.opts.Transport, transport.Descriptor{
			Variant:        r.opts.Transport.Variant(),
			BandwidthLimit: limit,
		}
	}

	cfg := r.opts.TransportConfig
	cfg.BandwidthLimit = limit
	cfg.Concurrency = r.opts.Workers
	return transport.Select(cfg)
}

// fetchPartition drives one partition to a terminal outcome: fetch,
// post-fetch integrity check, bounded retries with exponential backoff.
func (r *Replicator) fetchPartition(ctx context.Context, tr transport.Transport, desc transport.Descriptor, dataset string, entry PlanEntry) PartitionResult {
	correlationID := logging.GenerateCorrelationID()
	log := logging.PartitionLogger(correlationID, dataset, entry.Partition.AsOfDate.String())

	res := PartitionResult{AsOfDate: entry.Partition.AsOfDate}
	labels := r.labels(dataset, desc)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.opts.RetryInitialBackoff
	bo.MaxElapsedTime = 0 // attempts are bounded, not wall time

	integrityRetried := false

	for {
		if ctx.Err() != nil {
			res.Outcome = OutcomeFailed
			res.Err = ctx.Err()
			return res
		}

		res.Attempts++
		start := time.Now()

		if m := metrics.Get(); m != nil {
			m.IncInFlight()
		}
		err := tr.Fetch(ctx, entry.Partition.Location, entry.LocalPath)
		if m := metrics.Get(); m != nil {
			m.DecInFlight()
		}

		if err == nil {
			err = verifyFetched(entry)
		}

		if err == nil {
			if info, statErr := os.Stat(entry.LocalPath); statErr == nil {
				res.Bytes = info.Size()
			}
			r.writeManifest(dataset, desc, entry, res.Bytes, log)

			res.Outcome = OutcomeSucceeded
			elapsed := time.Since(start)
			log.Info("partition fetched",
				"attempts", res.Attempts,
				"bytes", res.Bytes,
				"duration_ms", elapsed.Milliseconds(),
			)
			if m := metrics.Get(); m != nil {
				m.IncPartitionsFetched(labels)
				m.AddBytesFetched(labels, float64(res.Bytes))
				m.ObserveFetchDuration(labels, elapsed.Seconds())
				m.ObservePartitionBytes(labels, float64(res.Bytes))
			}
			return res
		}

		retry := false
		var ie *IntegrityError
		switch {
		case errors.As(err, &ie):
			// One extra cycle for a mismatched fetch, then permanent.
			if !integrityRetried {
				integrityRetried = true
				retry = true
			}
		case isTransient(err):
			retry = res.Attempts < r.opts.RetryAttempts
		}

		if !retry || ctx.Err() != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("fetch %s asof=%s after %d attempts: %w",
				dataset, entry.Partition.AsOfDate, res.Attempts, err)
			log.Error("partition failed", "attempts", res.Attempts, "error", err)
			if m := metrics.Get(); m != nil {
				m.IncPartitionsFailed(labels)
			}
			return res
		}

		wait := bo.NextBackOff()
		log.Warn("fetch failed, retrying", "attempt", res.Attempts, "backoff", wait.String(), "error", err)
		if m := metrics.Get(); m != nil {
			m.IncRetryAttempts(labels)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			res.Outcome = OutcomeFailed
			res.Err = ctx.Err()
			return res
		}
	}
}

// verifyFetched re-runs the inspector's integrity check after a transfer.
// The transport's own success signal is necessary but not sufficient; a
// bad file is removed so it stays a fetch candidate for the next attempt.
func verifyFetched(entry PlanEntry) error {
	part := entry.Partition
	path := entry.LocalPath

	info, err := os.Stat(path)
	if err != nil {
		return &IntegrityError{Path: path, WantSize: part.SizeBytes, GotSize: 0}
	}

	if part.SizeBytes > 0 && info.Size() != part.SizeBytes {
		os.Remove(path)
		return &IntegrityError{Path: path, WantSize: part.SizeBytes, GotSize: info.Size()}
	}

	if part.Checksum != "" {
		sum, err := mirror.Checksum(path)
		if err != nil {
			return err
		}
		if sum != part.Checksum {
			os.Remove(path)
			return &IntegrityError{Path: path, WantSum: part.Checksum, GotSum: sum,
				WantSize: part.SizeBytes, GotSize: info.Size()}
		}
	}

	return nil
}

// writeManifest records the advisory sidecar. Failures are logged, never
// fatal: the filesystem check is the source of truth, not the manifest.
func (r *Replicator) writeManifest(dataset string, desc transport.Descriptor, entry PlanEntry, size int64, log *slog.Logger) {
	if !r.opts.WriteManifests {
		return
	}

	checksum := entry.Partition.Checksum
	if checksum == "" {
		if sum, err := mirror.Checksum(entry.LocalPath); err == nil {
			checksum = sum
		}
	}

	m := &mirror.Manifest{
		Dataset:   dataset,
		AsOfDate:  entry.Partition.AsOfDate,
		Location:  entry.Partition.Location,
		ByteSize:  size,
		Checksum:  checksum,
		Transport: string(desc.Variant),
		Producer: mirror.ProducerInfo{
			Name:    "unifier-mirror",
			Version: Version,
		},
		FetchedAt: time.Now().UTC(),
	}

	manifestPath := filepath.Join(filepath.Dir(entry.LocalPath), "_manifest.json")
	if err := mirror.WriteManifest(manifestPath, m); err != nil {
		log.Warn("failed to write manifest", "error", err)
	}
}

func (r *Replicator) labels(dataset string, desc transport.Descriptor) metrics.Labels {
	return metrics.Labels{Dataset: dataset, Transport: string(desc.Variant)}
}
