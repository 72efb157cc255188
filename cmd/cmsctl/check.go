package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/cmsadmin/internal/catalog"
)

func (c *cli) newCheckCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check DIR...",
		Short: "Lint collection documents without writing anything",
		Long: `check reports documents the admin would leave out of the catalog,
properties it would drop, and duplicate ids or keys. It exits non-zero when
any problem is found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			seeds, err := catalog.NewLoader().LoadAll(args)
			if err != nil {
				return err
			}
			problems := catalog.Check(seeds, cfg.Locales)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if problems == nil {
					problems = []catalog.Problem{}
				}
				if err := enc.Encode(problems); err != nil {
					return err
				}
			} else {
				for _, p := range problems {
					fmt.Fprintln(out, p.String())
				}
				fmt.Fprintf(out, "%d documents, %d problems\n", len(seeds), len(problems))
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problems found", len(problems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print problems as JSON")
	return cmd
}
