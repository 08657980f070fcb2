package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"schemamap/internal/canonical"
	"schemamap/internal/pipeline"
)

var (
	confirmHeader string
	confirmType   string
)

func init() {
	confirmCmd.Flags().StringVar(&confirmHeader, "header", "", "raw header text (required)")
	confirmCmd.Flags().StringVar(&confirmType, "type", "", "canonical type, e.g. Sales (required)")
	_ = confirmCmd.MarkFlagRequired("header")
	_ = confirmCmd.MarkFlagRequired("type")
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Store a user-confirmed mapping in the knowledge base",
	Long: `Confirm records that a header means a canonical type. Later runs in the same
domain reuse the confirmation instead of guessing.

Example:
  schemamap confirm --header "Umsatz Netto" --type Sales --domain retail`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := canonical.Parse(confirmType)
		if !ok {
			return fmt.Errorf("unknown canonical type %q", confirmType)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		p, closeFn, err := pipeline.Build(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := p.Confirm(ctx, confirmHeader, typ); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%q -> %s (domain %s)\n", confirmHeader, typ, appConfig.Domain)

		return nil
	},
}
