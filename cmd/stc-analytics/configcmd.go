package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
)

var configInitOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o",
		"config.yaml", "output file path")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitOutput); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", configInitOutput)
	}

	out, err := config.Template()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configInitOutput, out, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	log.WithField("path", configInitOutput).Info("Config file written")

	return nil
}
