package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/exponential-tech/unifier-mirror/internal/replicate"
	"github.com/exponential-tech/unifier-mirror/internal/transport"
)

func newReplicateCommand() *cobra.Command {
	var (
		backTo  string
		upTo    string
		target  string
		bwlimit string
		workers int
		native  bool
	)

	cmd := &cobra.Command{
		Use:   "replicate <dataset>",
		Short: "Mirror a dataset's date partitions to the local filesystem",
		Long: `Replicate resolves a dataset name and an optional inclusive as-of date
range against the catalog, then fetches every partition not already
complete in the local mirror. Runs are idempotent and resumable: rerun
the same command to pick up where an interrupted run stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newCatalogClient()
			if err != nil {
				return err
			}

			backToDate, err := parseDateFlag("back-to", backTo)
			if err != nil {
				return err
			}
			upToDate, err := parseDateFlag("up-to", upTo)
			if err != nil {
				return err
			}

			if bwlimit == "" {
				bwlimit = cfg.Transport.BandwidthLimit
			}
			limit, err := transport.ParseRate(bwlimit)
			if err != nil {
				return err
			}

			if target == "" {
				target = cfg.Mirror.TargetDir
			}
			if workers <= 0 {
				workers = cfg.Perf.Workers
			}

			opts := replicate.Options{
				Workers:             workers,
				RetryAttempts:       cfg.Perf.RetryAttempts,
				RetryInitialBackoff: cfg.Perf.RetryBackoff(),
				WriteManifests:      cfg.Mirror.WriteManifests,
				TransportConfig: transport.Config{
					ToolPath:    cfg.Transport.ToolPath,
					ForceNative: native || cfg.Transport.ForceNative,
				},
			}

			req := replicate.Request{
				Dataset:        args[0],
				TargetDir:      target,
				BackTo:         backToDate,
				UpTo:           upToDate,
				BandwidthLimit: limit,
			}

			result, runErr := replicate.New(client, opts).Replicate(cmd.Context(), req)
			if result != nil {
				printResult(result)
			}
			if runErr != nil {
				return runErr
			}
			if !result.Complete() {
				return fmt.Errorf("replication incomplete: %d partition(s) failed", failedCount(result))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backTo, "back-to", "", "earliest as-of date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&upTo, "up-to", "", "latest as-of date to include (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "mirror root directory")
	cmd.Flags().StringVar(&bwlimit, "bwlimit", "", `run-wide bandwidth ceiling, e.g. "2.5MB" (default unlimited)`)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent partition fetches")
	cmd.Flags().BoolVar(&native, "force-native", false, "skip the external syncer and use the native transport")
	return cmd
}

func printResult(r *replicate.Result) {
	succeeded, skipped, failed := r.Counts()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "AS-OF DATE\tOUTCOME\tBYTES\tATTEMPTS\tERROR\n")
	for _, p := range r.Partitions {
		errMsg := ""
		if p.Err != nil {
			errMsg = p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", p.AsOfDate, p.Outcome, p.Bytes, p.Attempts, errMsg)
	}
	w.Flush()

	fmt.Printf("\nrun %s: %d fetched, %d skipped, %d failed, %d bytes via %s in %s\n",
		r.RunID, succeeded, skipped, failed, r.BytesFetched(),
		r.Transport.String(), r.Finished.Sub(r.Started).Round(time.Millisecond))
}

func failedCount(r *replicate.Result) int {
	_, _, failed := r.Counts()
	return failed
}
