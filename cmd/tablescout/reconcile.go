package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/reconcile"
	"github.com/IshaanNene/TableScout/internal/storage"
	"github.com/IshaanNene/TableScout/internal/types"
)

var (
	reconcileInput  string
	reconcileOutput string
	lookupExisting  string
	lookupElastic   string
	lookupImage     string
	sortBy          string
	rawNames        bool
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge the per-tag restaurant table into one row per restaurant",
		Long: `Reconcile reads the restaurant table written by a crawl (one row per
restaurant and tag), gathers the tags of each restaurant into one list and
adds the existing, elastic and image flags from the configured lookup lists.
The input is a CSV file or "postgres" for the restaurant_tags table.`,
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}
	cmd.Flags().StringVarP(&reconcileInput, "input", "i", "", `restaurant CSV or "postgres" (default <output_path>/restaurants.csv)`)
	cmd.Flags().StringVarP(&reconcileOutput, "output", "o", "", "reconciled CSV path")
	cmd.Flags().StringVar(&lookupExisting, "existing", "", "id list for the existing flag")
	cmd.Flags().StringVar(&lookupElastic, "elastic", "", "id list for the elastic flag")
	cmd.Flags().StringVar(&lookupImage, "image", "", "id list for the image flag")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "column to sort on, descending")
	cmd.Flags().BoolVar(&rawNames, "raw-names", false, "keep raw column names")
	return cmd
}

func applyReconcileOverrides(cfg *config.Config) {
	rc := &cfg.Reconcile
	if reconcileInput != "" {
		rc.Input = reconcileInput
	}
	if rc.Input == "" {
		rc.Input = filepath.Join(cfg.Storage.OutputPath, storage.FileBase(types.KindRestaurant)+".csv")
	}
	if reconcileOutput != "" {
		rc.Output = reconcileOutput
	}
	if lookupExisting != "" {
		rc.Lookups.Existing = lookupExisting
	}
	if lookupElastic != "" {
		rc.Lookups.Elastic = lookupElastic
	}
	if lookupImage != "" {
		rc.Lookups.Image = lookupImage
	}
	if sortBy != "" {
		rc.SortBy = sortBy
	}
}

// loadRaw reads the raw table from a CSV file or from Postgres.
func loadRaw(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*reconcile.Table, error) {
	if cfg.Reconcile.Input != "postgres" {
		return reconcile.ReadCSVFile(cfg.Reconcile.Input)
	}

	pg, err := storage.NewPostgresStorage(ctx, cfg.Storage.Postgres.DSN, logger)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: err}
	}
	defer pg.Close()

	header, rows, err := pg.LoadRestaurantRows(ctx)
	if err != nil {
		return nil, err
	}
	return &reconcile.Table{Header: header, Rows: rows}, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(applyReconcileOverrides)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger = logger.With("component", "reconcile")

	raw, err := loadRaw(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer metrics.Close()
	}

	sets, err := reconcile.LoadLookups(ctx, cfg.Reconcile.Lookups, metrics, logger)
	if err != nil {
		return err
	}

	renames := cfg.Reconcile.Rename
	if renames == nil {
		renames = reconcile.DefaultRenames
	}
	if rawNames {
		renames = nil
	}

	out, err := reconcile.Run(raw, sets, reconcile.Options{
		ExistingTag: cfg.Reconcile.ExistingTag,
		Rename:      renames,
		SortBy:      cfg.Reconcile.SortBy,
	})
	if err != nil {
		return err
	}

	if err := out.WriteCSVFile(cfg.Reconcile.Output); err != nil {
		return err
	}
	metrics.SetReconciledRows(len(out.Rows))

	logger.Info("reconcile complete",
		"input", cfg.Reconcile.Input,
		"raw_rows", len(raw.Rows),
		"restaurants", len(out.Rows),
		"output", cfg.Reconcile.Output,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d rows into %d restaurants: %s\n",
		len(raw.Rows), len(out.Rows), cfg.Reconcile.Output)
	return nil
}
