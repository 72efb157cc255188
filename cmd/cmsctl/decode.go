package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/form"
	"github.com/pitabwire/cmsadmin/internal/schema"
)

func (c *cli) newDecodeCmd() *cobra.Command {
	var (
		locale  string
		asForm  bool
		payload bool
	)
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Print the collection a document decodes to",
		Long: `decode reads one YAML or JSON collection document and prints the
normalized collection for the chosen locale. With --form it prints the
editor form state instead, and with --payload the document the editor would
save back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if locale != "" && !cfg.Locales.Has(locale) {
				return fmt.Errorf("unsupported locale %q", locale)
			}
			seed, err := catalog.NewLoader().LoadFile(args[0])
			if err != nil {
				return err
			}

			var out any
			switch {
			case asForm || payload:
				collection, ok := schema.DecodeConfig(seed.Data)
				if !ok {
					return fmt.Errorf("%s: not a collection document", args[0])
				}
				codec := form.NewCodec(cfg.Locales)
				state := codec.Sanitize(codec.ToFormState(collection))
				out = state
				if payload {
					out = codec.ToConfigPayload(state)
				}
			default:
				desc, ok := schema.Decode(seed.Data, cfg.Locales, locale)
				if !ok {
					return fmt.Errorf("%s: document is not a valid collection", args[0])
				}
				out = desc
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "locale to resolve labels for (default locale if empty)")
	cmd.Flags().BoolVar(&asForm, "form", false, "print the editor form state")
	cmd.Flags().BoolVar(&payload, "payload", false, "print the document the editor would save")
	cmd.MarkFlagsMutuallyExclusive("form", "payload")
	return cmd
}
