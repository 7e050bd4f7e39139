package main

import (
	"fmt"
	"os"

	"splitstream/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

// configPaths are tried in order when --config is not given.
var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/splitstream/config.yaml",
	"config.yaml",
}

var rootCmd = &cobra.Command{
	Use:   "splitstream",
	Short: "Split-Stream multi-video session server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads --config, or the first default path that exists. Without
// any file the defaults and SPLITSTREAM_* overrides apply.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Load("")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
