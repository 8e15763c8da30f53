package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
	"github.com/exponential-tech/unifier-mirror/internal/replicate"
)

func newDatesCommand() *cobra.Command {
	var (
		backTo string
		upTo   string
	)

	cmd := &cobra.Command{
		Use:   "dates <dataset>",
		Short: "List the available as-of dates for a dataset",
		Args:  cobra.ExactArgs(1),
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

			parts, err := replicate.NewResolver(client).Resolve(cmd.Context(), args[0], backToDate, upToDate)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "AS-OF DATE\tSIZE\tLOCATION\n")
			for _, p := range parts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.AsOfDate, sizeColumn(p), p.Location)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&backTo, "back-to", "", "earliest as-of date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&upTo, "up-to", "", "latest as-of date to include (YYYY-MM-DD)")
	return cmd
}

func sizeColumn(p catalog.Partition) string {
	if p.SizeBytes <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", p.SizeBytes)
}
