package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/lscrefer/internal/refdata"
)

var (
	povertyIncome float64
	povertySize   string
	povertyState  string
)

var povertyCmd = &cobra.Command{
	Use:   "poverty",
	Short: "Express household income as a percentage of the poverty guideline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("poverty"); err != nil {
			return err
		}
		table, err := refdata.LoadPoverty(cfg.Data.PovertyPath)
		if err != nil {
			return err
		}
		pct, err := table.Percentage(povertyIncome, povertySize, povertyState)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", pct)
		return nil
	},
}

func init() {
	povertyCmd.Flags().Float64Var(&povertyIncome, "income", 0, "annual household income")
	povertyCmd.Flags().StringVar(&povertySize, "size", "", "household size")
	povertyCmd.Flags().StringVar(&povertyState, "state", "", "two-letter state code (AK and HI use their own guidelines)")
	_ = povertyCmd.MarkFlagRequired("income")
	_ = povertyCmd.MarkFlagRequired("size")
	rootCmd.AddCommand(povertyCmd)
}
