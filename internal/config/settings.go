package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// GitHubSettings configuration for repository discovery
type GitHubSettings struct {
	Token    string `mapstructure:"token"`
	Language string `mapstructure:"language"`
	MinStars int    `mapstructure:"min_stars"`
	Limit    int    `mapstructure:"limit"`
}

// CacheSettings configuration for the on-disk repository cache
type CacheSettings struct {
	MaxRepositories int     `mapstructure:"max_repositories"`
	MaxSizeGB       float64 `mapstructure:"max_size_gb"`
	Cleanup         bool    `mapstructure:"cleanup"`
}

// ScannerSettings configuration for risky-file routing.
// The gate thresholds apply before a file reaches the scanner; the guard
// thresholds apply inside the scanner as a second line of defense. The two
// sets intentionally carry different defaults.
type ScannerSettings struct {
	GateMaxBytes   int `mapstructure:"gate_max_bytes"`
	GateMaxBraces  int `mapstructure:"gate_max_braces"`
	GateMaxMacros  int `mapstructure:"gate_max_macros"`
	GuardMaxBytes  int `mapstructure:"guard_max_bytes"`
	GuardMaxBraces int `mapstructure:"guard_max_braces"`
	GuardMaxMacros int `mapstructure:"guard_max_macros"`
}

// OutputSettings configuration for result artifacts
type OutputSettings struct {
	Dir   string `mapstructure:"dir"`
	Index bool   `mapstructure:"index"`
}

// Settings application settings
type Settings struct {
	GitHub  GitHubSettings  `mapstructure:"github"`
	Cache   CacheSettings   `mapstructure:"cache"`
	Scanner ScannerSettings `mapstructure:"scanner"`
	Output  OutputSettings  `mapstructure:"output"`
	Workers int             `mapstructure:"workers"`
	Verbose bool            `mapstructure:"verbose"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("github.language", "rust")
	v.SetDefault("github.min_stars", 100)
	v.SetDefault("github.limit", 5)
	v.SetDefault("cache.max_repositories", 10)
	v.SetDefault("cache.max_size_gb", 5.0)
	v.SetDefault("cache.cleanup", false)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.index", false)
	v.SetDefault("workers", 4)
	v.SetDefault("verbose", false)

	// Gate thresholds apply before a file reaches the scanner.
	v.SetDefault("scanner.gate_max_bytes", 200_000)
	v.SetDefault("scanner.gate_max_braces", 500)
	v.SetDefault("scanner.gate_max_macros", 100)

	// Guard thresholds apply inside the scanner; looser than the gate.
	v.SetDefault("scanner.guard_max_bytes", 500_000)
	v.SetDefault("scanner.guard_max_braces", 1000)
	v.SetDefault("scanner.guard_max_macros", 200)

	// Environment variables
	v.SetEnvPrefix("DERIVE_CENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config. The token additionally honors
	// the conventional GITHUB_TOKEN variable.
	_ = v.BindEnv("github.token", "DERIVE_CENSUS_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("github.language", "DERIVE_CENSUS_GITHUB_LANGUAGE")
	_ = v.BindEnv("github.min_stars", "DERIVE_CENSUS_GITHUB_MIN_STARS")
	_ = v.BindEnv("github.limit", "DERIVE_CENSUS_GITHUB_LIMIT")
	_ = v.BindEnv("cache.max_repositories", "DERIVE_CENSUS_CACHE_MAX_REPOSITORIES")
	_ = v.BindEnv("cache.max_size_gb", "DERIVE_CENSUS_CACHE_MAX_SIZE_GB")
	_ = v.BindEnv("cache.cleanup", "DERIVE_CENSUS_CACHE_CLEANUP")
	_ = v.BindEnv("output.dir", "DERIVE_CENSUS_OUTPUT_DIR")
	_ = v.BindEnv("output.index", "DERIVE_CENSUS_OUTPUT_INDEX")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("github.token", flags.Lookup("github-token"))
		_ = v.BindPFlag("github.language", flags.Lookup("language"))
		_ = v.BindPFlag("github.min_stars", flags.Lookup("min-stars"))
		_ = v.BindPFlag("github.limit", flags.Lookup("repo-limit"))
		_ = v.BindPFlag("cache.max_repositories", flags.Lookup("cache-limit"))
		_ = v.BindPFlag("cache.max_size_gb", flags.Lookup("cache-size"))
		_ = v.BindPFlag("cache.cleanup", flags.Lookup("cleanup-cache"))
		_ = v.BindPFlag("output.dir", flags.Lookup("output"))
		_ = v.BindPFlag("output.index", flags.Lookup("index"))
		_ = v.BindPFlag("workers", flags.Lookup("workers"))
		_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.GitHub.Token = strings.TrimSpace(settings.GitHub.Token)
	settings.Output.Dir = expandHomeDir(settings.Output.Dir)

	return &settings, nil
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for invalid or inconsistent configuration.
func ValidateSettings(s *Settings) error {
	if s.GitHub.Language == "" {
		return errors.New("language cannot be empty")
	}
	if s.GitHub.MinStars < 0 {
		return errors.New("min-stars cannot be negative")
	}
	if s.GitHub.Limit <= 0 {
		return errors.New("repo-limit must be positive")
	}
	if s.Cache.MaxRepositories <= 0 {
		return errors.New("cache-limit must be positive")
	}
	if s.Cache.MaxSizeGB <= 0 {
		return errors.New("cache-size must be positive")
	}
	if s.Output.Dir == "" {
		return errors.New("output directory cannot be empty")
	}
	if s.Workers <= 0 {
		return errors.New("workers must be positive")
	}

	return validateScannerSettings(&s.Scanner)
}

// validateScannerSettings validates the risky-file thresholds
func validateScannerSettings(sc *ScannerSettings) error {
	thresholds := []struct {
		name  string
		value int
	}{
		{"scanner.gate_max_bytes", sc.GateMaxBytes},
		{"scanner.gate_max_braces", sc.GateMaxBraces},
		{"scanner.gate_max_macros", sc.GateMaxMacros},
		{"scanner.guard_max_bytes", sc.GuardMaxBytes},
		{"scanner.guard_max_braces", sc.GuardMaxBraces},
		{"scanner.guard_max_macros", sc.GuardMaxMacros},
	}
	for _, t := range thresholds {
		if t.value <= 0 {
			return errors.New(t.name + " must be positive")
		}
	}
	return nil
}
