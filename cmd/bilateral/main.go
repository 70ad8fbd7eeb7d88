// Package main provides the bilateral CLI: inspect the available backends,
// filter volumes and fit filter sigmas on synthetic data.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

var (
	configFile  string
	logLevel    string
	backendPref string
	showMetrics bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bilateral",
		Short:         "trainable bilateral filter with CPU and WebGPU backends",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&backendPref, "backend", "", "backend preference: auto, cpu or gpu")
	flags.BoolVar(&showMetrics, "metrics", false, "print dispatch metrics on exit")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "print version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "bilateral %s\n", version)
			},
		},
		newInfoCmd(),
		newFilterCmd(),
		newTrainCmd(),
	)
	return rootCmd
}
