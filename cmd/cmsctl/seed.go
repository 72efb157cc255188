package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/store"
)

func (c *cli) newSeedCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "seed [DIR...]",
		Short: "Write collection documents into the configured store",
		Long: `seed loads YAML collection documents and writes them into the store.
Documents that already exist are skipped unless --overwrite is given.
Without arguments the configured seed directories are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				dirs = cfg.Seed.Directories
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no seed directories given or configured")
			}
			logger, err := c.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			seeds, err := catalog.NewLoader().LoadAll(dirs)
			if err != nil {
				return err
			}

			backend, err := store.Open(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			written, err := catalog.NewSeeder(backend.Store, logger, overwrite || cfg.Seed.Overwrite).Apply(cmd.Context(), seeds)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d documents written\n", written, len(seeds))
			return err
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace documents that already exist")
	return cmd
}
