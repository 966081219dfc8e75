package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ncobase/runpod/runpod/catalog"
	"github.com/spf13/cobra"
)

func newModelsCommand(flags *rootFlags) *cobra.Command {
	var (
		operation string
		asJSON    bool
		refresh   bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available for an operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			op := catalog.Operation(operation)
			if !op.Valid() {
				return fmt.Errorf("unknown operation %q", operation)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if refresh {
				if err := a.coord.InvalidateModels(cmd.Context()); err != nil {
					return err
				}
			}
			return printModels(cmd.OutOrStdout(), a.coord.ListModels(cmd.Context(), op), asJSON)
		},
	}

	cmd.Flags().StringVarP(&operation, "operation", "o", string(catalog.OpStatus), "operation to list models for")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached catalog first")
	return cmd
}

func printModels(w io.Writer, entries []catalog.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tNAME\tCATEGORY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ModelID, e.Option(), e.Category)
	}
	return tw.Flush()
}
