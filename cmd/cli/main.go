package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gogrid/adapters/excel"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/compute"
	"gogrid/internal/errors"
	"gogrid/internal/formula"
	"gogrid/models"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "gogrid-cli",
		Short:         "gogrid CLI for computing and editing grids locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log at LOG_LEVEL instead of errors only")

	logger := func() *internal.Logger {
		if verbose {
			return internal.NewDefaultLogger()
		}
		return internal.NewLogger(internal.LogLevelError)
	}

	rootCmd.AddCommand(
		newComputeCmd(logger),
		newEvalCmd(),
		newExportCmd(logger),
		newReplCmd(logger),
	)
	return rootCmd
}

func newComputeCmd(logger func() *internal.Logger) *cobra.Command {
	var rows int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute a JSON grid read from stdin",
		Long: `Read a grid from stdin and print the computed grid as JSON.

The input is either a bare array of {"A","B","C","D"} rows or an object
with a "rawData" field holding one.

Example: echo '[{"A":"1","B":"=A1+1"}]' | gogrid-cli compute`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			raw, err := decodeInput(data, rows)
			if err != nil {
				return err
			}

			computed, err := computeGrid(cmd.Context(), raw, timeout, logger())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(models.ComputeResponse{Result: computed})
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "Normalize to this many rows (0 keeps the input's row count)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Maximum time to wait for the result")
	return cmd
}

func newEvalCmd() *cobra.Command {
	var gridFile string

	cmd := &cobra.Command{
		Use:   "eval [formula]",
		Short: "Evaluate one formula against an optional grid file",
		Long: `Evaluate a formula strictly left to right against the raw cells of a grid.

Example: gogrid-cli eval "=A1+B2*2" --grid sheet.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := grid.NewRawGrid(grid.DefaultRows)
			if gridFile != "" {
				var err error
				raw, err = excel.NewDataReader(gridFile).ReadGrid(0)
				if err != nil {
					return err
				}
			}

			result := formula.Evaluate(args[0], raw)
			if !result.OK() {
				fmt.Fprintln(cmd.ErrOrStderr(), result.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Display())
			return nil
		},
	}

	cmd.Flags().StringVar(&gridFile, "grid", "", "Grid file (.json, .csv or .xlsx)")
	return cmd
}

func newExportCmd(logger func() *internal.Logger) *cobra.Command {
	var rows int
	var output string

	cmd := &cobra.Command{
		Use:   "export [grid-file]",
		Short: "Write a grid and its computed values to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := excel.NewDataReader(args[0]).ReadGrid(rows)
			if err != nil {
				return err
			}
			computed, err := computeGrid(cmd.Context(), raw, 5*time.Second, logger())
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := excel.NewWorkbook().Export(f, raw, computed); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(raw), output)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "Normalize to this many rows (0 keeps the file's row count)")
	cmd.Flags().StringVarP(&output, "output", "o", "grid.xlsx", "Workbook to write")
	return cmd
}

// decodeInput accepts a bare grid or a compute request wrapping one
func decodeInput(data []byte, rows int) (grid.RawGrid, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidInput("input is not valid JSON")
	}
	if wrapped := gjson.GetBytes(data, "rawData"); wrapped.Exists() {
		data = []byte(wrapped.Raw)
	}
	raw, err := grid.Decode(data, rows)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return raw, nil
}

// computeGrid runs raw through a short-lived compute channel
func computeGrid(ctx context.Context, raw grid.RawGrid, timeout time.Duration, logger *internal.Logger) (grid.ComputedGrid, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := compute.NewChannel(nil, logger)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ch.Compute(ctx, raw)
}
