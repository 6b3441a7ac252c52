package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, masking the token
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	if s.GitHub.Token != "" {
		logger.InfoContext(ctx, "Config: github.token", "value", "****")
	} else {
		logger.WarnContext(ctx, "Config: github.token not set, API rate limits will be very restrictive")
	}
	logger.InfoContext(ctx, "Config: github.language", "value", s.GitHub.Language)
	logger.InfoContext(ctx, "Config: github.min_stars", "value", s.GitHub.MinStars)
	logger.InfoContext(ctx, "Config: github.limit", "value", s.GitHub.Limit)
	logger.InfoContext(ctx, "Config: cache.max_repositories", "value", s.Cache.MaxRepositories)
	logger.InfoContext(ctx, "Config: cache.max_size_gb", "value", s.Cache.MaxSizeGB)
	logger.InfoContext(ctx, "Config: cache.cleanup", "value", s.Cache.Cleanup)
	logger.InfoContext(ctx, "Config: output.dir", "value", s.Output.Dir)
	logger.InfoContext(ctx, "Config: output.index", "value", s.Output.Index)
	logger.InfoContext(ctx, "Config: workers", "value", s.Workers)
}

// GitHubSettingsLogValue returns a slog.Value for GitHubSettings with masked token
func GitHubSettingsLogValue(s GitHubSettings) slog.Value {
	token := ""
	if s.Token != "" {
		token = "****"
	}
	return slog.GroupValue(
		slog.String("token", token),
		slog.String("language", s.Language),
		slog.Int("min_stars", s.MinStars),
		slog.Int("limit", s.Limit),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.Any("github", GitHubSettingsLogValue(s.GitHub)),
		slog.Int("cache_max_repositories", s.Cache.MaxRepositories),
		slog.Float64("cache_max_size_gb", s.Cache.MaxSizeGB),
		slog.String("output_dir", s.Output.Dir),
		slog.Int("workers", s.Workers),
	)
}
