package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared between the bot and the worker.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// BotConfig contains bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Moderation case engine configuration.
	Moderation Moderation `koanf:"moderation"`
	// Location liveness monitor configuration.
	Monitor Monitor `koanf:"monitor"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guild ID of the community workspace.
	GuildID uint64 `koanf:"guild_id"`
	// Channel ID of the flight feed to watch for arrival lines.
	FlightChannelID uint64 `koanf:"flight_channel_id"`
	// Channel ID where unknown-traveler alerts are posted.
	AlertChannelID uint64 `koanf:"alert_channel_id"`
	// Channel ID where closed-case audit entries are posted.
	AuditChannelID uint64 `koanf:"audit_channel_id"`
	// Category ID holding the monitored location channels.
	LocationCategoryID uint64 `koanf:"location_category_id"`
	// Role ID granted to admitted visitors.
	AccessRoleID uint64 `koanf:"access_role_id"`
	// Role IDs allowed to act on cases and run privileged commands.
	ModeratorRoleIDs []uint64 `koanf:"moderator_role_ids"`
}

// Moderation contains case engine configuration.
type Moderation struct {
	// Minutes an unfinished punishment wizard survives before it is swept.
	WizardTimeoutMinutes int `koanf:"wizard_timeout_minutes"`
	// Default lookback window in days for warning counts.
	DefaultWindowDays int `koanf:"default_window_days"`
	// Maximum accepted lookback window in days.
	MaxWindowDays int `koanf:"max_window_days"`
	// Days after which a warning stops counting against a member.
	WarnExpiryDays int `koanf:"warn_expiry_days"`
}

// Monitor contains location liveness monitor configuration.
type Monitor struct {
	// Minutes between liveness sweeps.
	IntervalMinutes int `koanf:"interval_minutes"`
	// Per-location check timeout in seconds.
	CheckTimeoutSeconds int `koanf:"check_timeout_seconds"`
	// Messages inspected per location channel during a sweep.
	HistoryLimit int `koanf:"history_limit"`
	// Username marker identifying the session host account.
	HostMarker string `koanf:"host_marker"`
	// Role ID of the companion account whose presence is the cheap signal.
	CompanionRoleID uint64 `koanf:"companion_role_id"`
	// Username prefix of companion accounts.
	CompanionPrefix string `koanf:"companion_prefix"`
	// Location channel names to monitor.
	Locations []string `koanf:"locations"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".dodogate",
		homeDir + "/.dodogate/config",
		"/etc/dodogate/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/dodogate/dodogate/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
