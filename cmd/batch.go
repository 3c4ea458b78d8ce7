package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/batch"
	"github.com/sells-group/lscrefer/internal/export"
)

var (
	batchIn          string
	batchOut         string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve program and poverty percentage for every row of a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}

		f, err := os.Open(batchIn)
		if err != nil {
			return eris.Wrap(err, "batch: open input")
		}
		reqs, err := batch.ReadRequests(f)
		_ = f.Close()
		if err != nil {
			return err
		}

		env, err := initResolver(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := batch.NewRunner(env.Service, env.Poverty,
			batch.WithGeocoder(env.Geocoder),
			batch.WithConcurrency(cfg.Batch.Concurrency),
		)
		results, err := runner.Run(ctx, reqs)
		if err != nil {
			return err
		}

		if err := writeBatch(cmd.OutOrStdout(), batchOut, results); err != nil {
			return err
		}
		zap.L().Info("batch complete", zap.Int("rows", len(results)), zap.String("out", batchOut))
		return nil
	},
}

// writeBatch writes results to path, choosing XLSX or CSV by extension, or
// CSV to stdout when path is empty.
func writeBatch(stdout io.Writer, path string, results []batch.Result) error {
	if path == "" {
		return export.WriteBatchCSV(stdout, results)
	}

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "batch: create output")
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = export.WriteBatchXLSX(out, results)
	} else {
		err = export.WriteBatchCSV(out, results)
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "batch: close output")
	}
	return err
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "input CSV (id,street,unit,city,state,zip,income,household_size)")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output file, .csv or .xlsx (default CSV to stdout)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "rows resolved at once (default from config)")
	_ = batchCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(batchCmd)
}
