package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "machinepulse",
	Short:         "MachinePulse is the session gateway for the maintenance dashboard.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
