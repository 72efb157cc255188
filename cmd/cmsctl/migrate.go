package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/cmsadmin/internal/store"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	for _, sub := range []struct {
		command string
		short   string
	}{
		{store.MigrateUp, "Apply all pending migrations"},
		{store.MigrateDown, "Roll back the most recent migration"},
		{store.MigrateStatus, "Show which migrations have been applied"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   sub.command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.migrate(cmd, sub.command)
			},
		})
	}
	return cmd
}

func (c *cli) migrate(cmd *cobra.Command, command string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != "postgres" {
		return fmt.Errorf("migrations need the postgres store driver, not %q", cfg.Store.Driver)
	}
	// goose reports progress through the logger.
	c.logLevel = "info"
	logger, err := c.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := store.OpenPool(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer pool.Close()

	return store.Migrate(cmd.Context(), pool, command, logger)
}
