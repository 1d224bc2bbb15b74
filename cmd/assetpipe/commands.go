package main

import (
	"github.com/spf13/cobra"

	"github.com/ngld/assetpipe/pkg/tasks"
)

var defaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Development build, then watch the sources and serve the output with live reload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd, (*tasks.Project).Development)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Production build",
	Long:  `Cleans the output directory and builds minified assets without source maps.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd, (*tasks.Project).Production)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Add content hashes to the built assets",
	Long: `Renames every stylesheet, script, image and font in the output directory to include a content
hash, writes the renames to rev.json and updates the references in stylesheets and HTML files.
Run it after "build".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd, (*tasks.Project).Cache)
	},
}

func init() {
	rootCmd.AddCommand(defaultCmd, buildCmd, cacheCmd)
}
