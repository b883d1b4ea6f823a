package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance commands",
}

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all rows from every table",
	Long: `Delete every row from every canonical table. The schema is kept.
This cannot be undone.`,
	RunE: runDBClear,
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate every table",
	Long: `Drop every canonical table and recreate it empty. This is the only
schema migration mechanism and it discards all data.`,
	RunE: runDBReset,
}

func init() {
	dbCmd.AddCommand(dbClearCmd)
	dbCmd.AddCommand(dbResetCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

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

	if err := st.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing tables: %w", err)
	}

	log.Info("All tables cleared")

	return nil
}

func runDBReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

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

	if err := st.Reset(ctx); err != nil {
		return fmt.Errorf("resetting schema: %w", err)
	}

	log.Info("Schema reset")

	return nil
}
