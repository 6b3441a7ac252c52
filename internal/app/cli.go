package app

import "github.com/spf13/pflag"

// RegisterFlags registers all analysis CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("github-token", "", "GitHub API token (falls back to GITHUB_TOKEN)")
	flags.String("language", "", "Repository language to search for")
	flags.Int("min-stars", 0, "Minimum stars required for repository selection")
	flags.IntP("repo-limit", "r", 0, "Maximum number of repositories to analyze")
	flags.IntP("cache-limit", "c", 0, "Maximum number of repositories to keep cached on disk")
	flags.Float64P("cache-size", "s", 0, "Maximum cache size in GB")
	flags.Bool("cleanup-cache", false, "Delete the repository cache after the run")
	flags.StringP("output", "o", "", "Output directory for analysis results")
	flags.Bool("index", false, "Build a full-text search index over the findings")
	flags.IntP("workers", "t", 0, "Number of workers for repository processing")
	flags.BoolP("verbose", "v", false, "Verbose logging")
}
