package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const app = "jobpilot"

var (
	// Used for flags.
	cfgFile string
	dataDir string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobpilot discovers job postings, scores them, and applies or reaches out on its own",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml in the data dir)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory for the database, lock file, and bootstrapped config")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}
