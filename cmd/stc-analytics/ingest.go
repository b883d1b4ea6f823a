package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/ingest"
	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/store"
)

var ingestFormat string

var ingestCmd = &cobra.Command{
	Use:   "ingest <kind> <file>",
	Short: "Ingest one telemetry file into the store",
	Long: `Parse, normalize and upsert a single CSV or NDJSON file. The kind
is one of: cost, finding, run, tx. The format is detected from the file
extension unless --format is given.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "",
		"payload format (csv, ndjson)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	kind, ok := schema.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown record kind: %s", args[0])
	}

	format := ingest.DetectFormat(args[1])

	if ingestFormat != "" {
		parsed, ok := ingest.ParseFormat(ingestFormat)
		if !ok {
			return fmt.Errorf("unknown payload format: %s", ingestFormat)
		}

		format = parsed
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer file.Close()

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Store stop error")
		}
	}()

	svc := ingest.NewService(log, st, &cfg.Ingest)

	result, err := svc.Ingest(ctx, kind, format, file)
	if err != nil {
		return fmt.Errorf("ingesting file: %w", err)
	}

	if result.Warning != "" {
		log.WithField("warning", result.Warning).Warn("Ingestion finished with warning")
	}

	log.WithField("table", result.Table).
		WithField("rows", result.Rows).
		Info("Ingestion complete")

	// Benchmark data is cross-checked across both tables after ingest.
	if kind == schema.KindRun || kind == schema.KindTx {
		v, err := st.BenchValidation(ctx)
		if err != nil {
			return fmt.Errorf("validating benchmark tables: %w", err)
		}

		log.WithField("run_rows", v.RunRows).
			WithField("tx_rows", v.TxRows).
			WithField("run_id_matches", v.MatchedRunIDs).
			Info("Benchmark validation")
	}

	return nil
}

// openStore starts a store from config for one-shot commands.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	return st, nil
}
