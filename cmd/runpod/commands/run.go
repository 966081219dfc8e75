package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ncobase/runpod/runpod/executor"
	"github.com/spf13/cobra"
)

// batch is the run input: either this object or a bare array of items.
type batch struct {
	Items    []map[string]any `json:"items"`
	FailFast bool             `json:"failFast"`
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute work items from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			b, err := readBatch(in)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			results := a.coord.Run(cmd.Context(), executor.MapParams(b.Items), executor.RunOptions{
				FailFast: failFast || b.FailFast,
			})
			return writeResults(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed item")
	return cmd
}

func readBatch(r io.Reader) (*batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no items given")
	}

	b := &batch{}
	if data[0] == '[' {
		err = json.Unmarshal(data, &b.Items)
	} else {
		err = json.Unmarshal(data, b)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid items JSON: %w", err)
	}
	if len(b.Items) == 0 {
		return nil, errors.New("no items given")
	}
	return b, nil
}

// writeResults prints the results and reports failed items as an error.
func writeResults(w io.Writer, results []executor.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(results))
	}
	return nil
}
