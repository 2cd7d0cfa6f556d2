package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ortelius/pdvd-depscan/internal/config"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Seed projects from SEED_FILE, run one dependency scan and print the records as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		if rt.cfg.SeedFile == "" && rt.cfg.RecordsBackend == config.BackendMemory {
			return errors.New("nothing to scan: set SEED_FILE or use the arango records backend")
		}

		summary, err := rt.scanner.ScanOnce(ctx)
		if err != nil {
			return err
		}

		deps, err := rt.store.AllDependencies(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"summary":      summary,
			"dependencies": deps,
		})
	},
}
