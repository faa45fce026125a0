package cmd

import (
	"github.com/ostafen/diglet/internal/env"
	"github.com/spf13/cobra"
)

const AppName = env.AppName

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - forensic JPEG/PNG file carving tool",
	}

	rootCmd.AddCommand(DefineRecoverCommand())
	rootCmd.AddCommand(DefineFormatsCommand())
	rootCmd.AddCommand(DefineMountCommand())
	rootCmd.AddCommand(DefineMergeCommand())

	return rootCmd.Execute()
}
