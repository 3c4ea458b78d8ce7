package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/export"
	"github.com/sells-group/lscrefer/internal/lsc"
)

// Office output formats.
const (
	formatTable   = "table"
	formatJSON    = "json"
	formatGeoJSON = "geojson"
	formatShp     = "shp"
)

var (
	officesAddr   addressFlags
	officesFormat string
	officesOut    string
	officesNoSort bool
	citiesAddr    addressFlags
)

var officesCmd = &cobra.Command{
	Use:   "offices",
	Short: "List the offices of the program serving an address, nearest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch officesFormat {
		case formatTable, formatJSON, formatGeoJSON:
		case formatShp:
			if officesOut == "" {
				return eris.New("offices: --out is required for shp output")
			}
		default:
			return eris.Errorf("offices: unknown format %q", officesFormat)
		}

		env, err := initResolver(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		person := officesAddr.person(cmd)
		prog, err := env.Service.ProgramFor(ctx, person)
		if err != nil {
			return err
		}
		if prog == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No legal-aid program serves this address.")
			return nil
		}

		var ref *lsc.Address
		if !officesNoSort {
			ref = &person.Address
		}
		offices, err := env.Service.OfficesFor(ctx, prog, ref)
		if err != nil {
			return err
		}
		zap.L().Info("offices resolved",
			zap.String("program", prog.Name),
			zap.Int("offices", len(offices)),
		)

		return writeOffices(cmd, offices)
	},
}

func writeOffices(cmd *cobra.Command, offices []lsc.Office) error {
	out := cmd.OutOrStdout()
	switch officesFormat {
	case formatJSON:
		return writeJSON(out, offices)
	case formatGeoJSON:
		data, err := export.OfficesGeoJSON(offices)
		if err != nil {
			return err
		}
		if officesOut != "" {
			return eris.Wrap(os.WriteFile(officesOut, data, 0o644), "offices: write geojson")
		}
		_, err = out.Write(append(data, '\n'))
		return err
	case formatShp:
		if err := export.WriteOfficesShapefile(officesOut, offices); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %d offices to %s\n", len(offices), officesOut)
		return nil
	default:
		formatOffices(out, offices)
		return nil
	}
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List the cities with an office of the program serving an address, nearest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResolver(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		person := citiesAddr.person(cmd)
		prog, err := env.Service.ProgramFor(ctx, person)
		if err != nil {
			return err
		}
		cities, err := env.Service.CitiesNear(ctx, prog, person)
		if err != nil {
			return err
		}
		for _, c := range cities {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func init() {
	officesAddr.register(officesCmd)
	officesCmd.Flags().StringVar(&officesFormat, "format", formatTable, "output format: table, json, geojson or shp")
	officesCmd.Flags().StringVar(&officesOut, "out", "", "output file (required for shp, optional for geojson)")
	officesCmd.Flags().BoolVar(&officesNoSort, "no-sort", false, "keep layer order instead of sorting by distance")
	citiesAddr.register(citiesCmd)
	rootCmd.AddCommand(officesCmd, citiesCmd)
}
