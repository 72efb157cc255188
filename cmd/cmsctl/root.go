package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/config"
	"github.com/pitabwire/cmsadmin/internal/observability"
)

// cli carries the flags shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "cmsctl",
		Short: "cmsctl - operator tool for the CMS admin",
		Long: `cmsctl lints and seeds collection documents, previews how the admin
decodes them, and manages the Postgres schema.

Without --config the built-in defaults are used (memory store, en and th
locales). Store credentials are read from the environment variables named
in the configuration.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level for store and seed output")

	cmd.AddCommand(
		c.newCheckCmd(),
		c.newDecodeCmd(),
		c.newSeedCmd(),
		c.newMigrateCmd(),
	)
	return cmd
}

// config loads the configuration file, or the defaults when none is given.
func (c *cli) config() (*config.Config, error) {
	if c.configPath == "" {
		return config.Defaults(), nil
	}
	return config.Load(c.configPath)
}

func (c *cli) logger(cfg *config.Config) (*zap.Logger, error) {
	obs := cfg.Observability
	obs.LogLevel = c.logLevel
	return observability.NewLogger(obs)
}
