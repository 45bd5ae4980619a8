package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath       string
	flagCacheDir         string
	flagSourcesDir       string
	flagRefreshInterval  time.Duration
	flagContainerBinary  string
	flagLogLevel         string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "toolmesh-gateway federates tools from mounted MCP servers behind one upstream MCP endpoint",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to settings.yaml (defaults to $XDG_CONFIG_HOME/toolmesh-gateway/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "override the entry/mount cache directory")
	rootCmd.PersistentFlags().StringVar(&flagSourcesDir, "sources-dir", "", "override the static source directory")
	rootCmd.PersistentFlags().DurationVar(&flagRefreshInterval, "refresh-interval", 0, "override the catalog refresh interval")
	rootCmd.PersistentFlags().StringVar(&flagContainerBinary, "container-binary", "", "override the container binary (docker or podman)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
