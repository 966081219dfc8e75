package commands

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "runpod",
		Short:         "Run jobs on Runpod public endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "conf", "c", "", "config file path (searched when empty)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(
		newServeCommand(flags),
		newRunCommand(flags),
		newModelsCommand(flags),
		newVersionCommand(),
	)

	return rootCmd
}
