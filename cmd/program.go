package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	programAddr     addressFlags
	programJSON     bool
	serviceAreaAddr addressFlags
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Find the legal-aid program serving an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResolver(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		prog, err := env.Service.ProgramFor(ctx, programAddr.person(cmd))
		if err != nil {
			return err
		}
		if prog == nil {
			zap.L().Info("address is outside every service area")
		}

		if programJSON {
			return writeJSON(cmd.OutOrStdout(), prog)
		}
		formatProgram(cmd.OutOrStdout(), prog)
		return nil
	},
}

var serviceAreaCmd = &cobra.Command{
	Use:   "service-area",
	Short: "Show the raw service-area match and program for an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResolver(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		area, err := env.Service.ServiceAreaFor(ctx, serviceAreaAddr.person(cmd))
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), area)
	},
}

func init() {
	programAddr.register(programCmd)
	programCmd.Flags().BoolVar(&programJSON, "json", false, "print JSON instead of a summary")
	serviceAreaAddr.register(serviceAreaCmd)
	rootCmd.AddCommand(programCmd, serviceAreaCmd)
}
