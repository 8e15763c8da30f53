package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
	"github.com/exponential-tech/unifier-mirror/internal/config"
	"github.com/exponential-tech/unifier-mirror/internal/logging"
	"github.com/exponential-tech/unifier-mirror/internal/metrics"
	"github.com/exponential-tech/unifier-mirror/internal/replicate"
)

var (
	configPath string
	cfg        *config.Config
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "unifier-mirror",
		Short:         "Replicate point-in-time catalog datasets to a local mirror",
		Version:       fmt.Sprintf("%s (%s)", replicate.Version, replicate.GitSHA),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env file is optional; real environment always wins.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			logging.Setup(cfg.Logging)

			if cfg.Metrics.Enabled {
				metrics.Init("unifier_mirror")
				go func() {
					if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
						slog.Error("metrics server stopped", "error", err)
					}
				}()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(newReplicateCommand())
	root.AddCommand(newDatesCommand())
	root.AddCommand(newCatalogsCommand())
	return root
}

// newCatalogClient builds the catalog client from the loaded config.
func newCatalogClient() (*catalog.Client, error) {
	if cfg.Catalog.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required (set catalog.base_url or UNIFIER_BASE_URL)")
	}
	return catalog.NewClient(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Credentials: catalog.Credentials{
			User:  cfg.Catalog.User,
			Token: cfg.Catalog.Token,
		},
		Timeout: cfg.Catalog.Timeout(),
	}), nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value. Empty means
// unbounded.
func parseDateFlag(flag, value string) (catalog.Date, error) {
	if value == "" {
		return catalog.Date{}, nil
	}
	d, err := catalog.ParseDate(value)
	if err != nil {
		return catalog.Date{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return d, nil
}
