// Package cli provides the command-line interface for shushu.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// projectDir holds the config file, cursor file, and archive database
// for one mirrored account.
var projectDir string

var rootCmd = &cobra.Command{
	Use:   "shushu",
	Short: "Mirror a twitter account onto Bluesky",
	Long:  "shushu incrementally mirrors posts from a twitter account onto Bluesky, preserving text, inline links, and images, without duplicating or losing posts across runs.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("shushu %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "project directory with config.json and state")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
