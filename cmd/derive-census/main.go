package main

import (
	"context"
	"os"

	"github.com/derive-tools/derive-census/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "derive-census"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Rust derive attribute census",
		Long:    "Discovers Rust repositories on GitHub, clones them into a bounded cache and extracts #[derive(...)] attribute usage into JSON, CSV and summary artifacts",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a findings index built by a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("output")
			repository, _ := cmd.Flags().GetString("repository")
			size, _ := cmd.Flags().GetInt("size")
			return app.RunSearch(cmd.OutOrStdout(), outDir, args[0], repository, size)
		},
	}
	cmd.Flags().StringP("output", "o", "data", "Output directory holding the findings index")
	cmd.Flags().String("repository", "", "Restrict results to a single repository (owner/name)")
	cmd.Flags().IntP("size", "n", 10, "Maximum number of results to return")
	return cmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
