// Package main implements the faultline CLI for analyzing CI/CD
// failure logs against the pattern catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "CI/CD failure log analysis",
	Long: `faultline analyzes CI/CD failure logs against a catalog of known
failure patterns, scores the matches, and learns new patterns from
recurring unrecognized failures and user feedback.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the faultline version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/faultline/config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statsCmd)
}
