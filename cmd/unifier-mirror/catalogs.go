package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogs",
		Short: "List the datasets visible to the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newCatalogClient()
			if err != nil {
				return err
			}

			descs, err := client.ListCatalogs(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "NAME\tOWNER\tPARTITIONS\tLATEST AS-OF\tDESCRIPTION\n")
			for _, d := range descs {
				latest := "-"
				if !d.LatestAsOf.IsZero() {
					latest = d.LatestAsOf.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					d.Name, d.Owner, d.PartitionCount, latest, d.Description)
			}
			return w.Flush()
		},
	}
}
