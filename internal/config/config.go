// Package config loads the orchestrator's runtime configuration from a
// YAML file plus environment variable overrides, in the teacher's
// viper-backed style (env vars always win over the config file).
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the fully-resolved orchestrator configuration.
type Config struct {
	DatabaseURL string
	APIPort     int
	Debug       bool
	Environment string

	Platforms  PlatformsConfig
	Assistants AssistantsConfig
	Worktree   WorktreeConfig
	Concurrency ConcurrencyConfig
	Telemetry  TelemetryConfig
}

// PlatformsConfig holds per-front-end credentials and allowlists (§6).
type PlatformsConfig struct {
	Telegram TelegramConfig
	Discord  DiscordConfig
	Slack    SlackConfig
	GitHub   GitHubConfig
}

type TelegramConfig struct {
	Enabled        bool
	Token          string
	AllowedUserIDs string
}

type DiscordConfig struct {
	Enabled        bool
	BotToken       string
	AllowedUserIDs string
}

type SlackConfig struct {
	Enabled    bool
	BotToken   string
	AppToken   string
	AllowedIDs string
}

type GitHubConfig struct {
	Enabled       bool
	Token         string
	WebhookSecret string
	AllowedUsers  string
}

// AssistantsConfig holds credentials for each AssistantClient backend.
type AssistantsConfig struct {
	Claude   ClaudeConfig
	OpenCode OpenCodeConfig
}

type ClaudeConfig struct {
	APIKey string
	Model  string
}

type OpenCodeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// WorktreeConfig governs isolation-environment materialization (§4.C/§5).
type WorktreeConfig struct {
	BaseDir     string
	MaxPerRepo  int
}

// ConcurrencyConfig bounds the orchestrator's global handler pool (§4.D).
type ConcurrencyConfig struct {
	GlobalLimit int
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Load reads config.yaml (if present, from cwd or $XDG_CONFIG_HOME/archon)
// and overlays environment variables, which always take precedence.
func Load(cfgFile string) (*Config, error) {
	if err := initViper(cfgFile); err != nil {
		return nil, err
	}
	bindEnvVars()

	cfg := &Config{
		DatabaseURL: getEnvOrDefault("ARCHON_DATABASE_URL", defaultDatabasePath()),
		APIPort:     getEnvIntOrDefault("ARCHON_API_PORT", 8585),
		Debug:       getEnvBoolOrDefault("ARCHON_DEBUG", false),
		Environment: getEnvOrDefault("ARCHON_ENVIRONMENT", "development"),

		Platforms: PlatformsConfig{
			Telegram: TelegramConfig{
				Token:          getEnvOrDefault("ARCHON_TELEGRAM_TOKEN", ""),
				AllowedUserIDs: getEnvOrDefault("ARCHON_TELEGRAM_ALLOWED_IDS", ""),
			},
			Discord: DiscordConfig{
				BotToken:       getEnvOrDefault("ARCHON_DISCORD_BOT_TOKEN", ""),
				AllowedUserIDs: getEnvOrDefault("ARCHON_DISCORD_ALLOWED_IDS", ""),
			},
			Slack: SlackConfig{
				BotToken:   getEnvOrDefault("ARCHON_SLACK_BOT_TOKEN", ""),
				AppToken:   getEnvOrDefault("ARCHON_SLACK_APP_TOKEN", ""),
				AllowedIDs: getEnvOrDefault("ARCHON_SLACK_ALLOWED_IDS", ""),
			},
			GitHub: GitHubConfig{
				Token:         getEnvOrDefault("ARCHON_GITHUB_TOKEN", ""),
				WebhookSecret: getEnvOrDefault("ARCHON_GITHUB_WEBHOOK_SECRET", ""),
				AllowedUsers:  getEnvOrDefault("ARCHON_GITHUB_ALLOWED_USERS", ""),
			},
		},

		Assistants: AssistantsConfig{
			Claude: ClaudeConfig{
				APIKey: getEnvOrDefault("ANTHROPIC_API_KEY", ""),
				Model:  getEnvOrDefault("ARCHON_CLAUDE_MODEL", ""),
			},
			OpenCode: OpenCodeConfig{
				APIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
				BaseURL: getEnvOrDefault("ARCHON_OPENCODE_BASE_URL", ""),
				Model:   getEnvOrDefault("ARCHON_OPENCODE_MODEL", ""),
			},
		},

		Worktree: WorktreeConfig{
			BaseDir:    getEnvOrDefault("ARCHON_WORKTREE_BASE_DIR", defaultWorktreeBaseDir()),
			MaxPerRepo: getEnvIntOrDefault("ARCHON_WORKTREE_MAX_PER_REPO", 25),
		},

		Concurrency: ConcurrencyConfig{
			GlobalLimit: getEnvIntOrDefault("ARCHON_CONCURRENCY_LIMIT", 10),
		},

		Telemetry: TelemetryConfig{
			Enabled:     getEnvBoolOrDefault("ARCHON_TELEMETRY_ENABLED", false),
			Endpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName: getEnvOrDefault("ARCHON_TELEMETRY_SERVICE_NAME", "archon"),
		},
	}

	// Layer in anything Viper resolved from config.yaml (or from the env
	// bindings above, which take precedence within Viper itself) that the
	// direct os.Getenv reads above didn't already cover. viper.IsSet is
	// true for a key set by either the config file or a bound env var, and
	// viper.GetString/GetInt/GetBool resolve env over file per Viper's own
	// precedence, so an explicit env var still wins over the YAML file.
	if viper.IsSet("database_url") {
		cfg.DatabaseURL = viper.GetString("database_url")
	}
	if viper.IsSet("api_port") {
		cfg.APIPort = viper.GetInt("api_port")
	}
	if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}
	if viper.IsSet("environment") {
		cfg.Environment = viper.GetString("environment")
	}
	if viper.IsSet("telegram.token") {
		cfg.Platforms.Telegram.Token = viper.GetString("telegram.token")
	}
	if viper.IsSet("telegram.allowed_user_ids") {
		cfg.Platforms.Telegram.AllowedUserIDs = viper.GetString("telegram.allowed_user_ids")
	}
	if viper.IsSet("discord.bot_token") {
		cfg.Platforms.Discord.BotToken = viper.GetString("discord.bot_token")
	}
	if viper.IsSet("discord.allowed_user_ids") {
		cfg.Platforms.Discord.AllowedUserIDs = viper.GetString("discord.allowed_user_ids")
	}
	if viper.IsSet("slack.bot_token") {
		cfg.Platforms.Slack.BotToken = viper.GetString("slack.bot_token")
	}
	if viper.IsSet("slack.app_token") {
		cfg.Platforms.Slack.AppToken = viper.GetString("slack.app_token")
	}
	if viper.IsSet("slack.allowed_ids") {
		cfg.Platforms.Slack.AllowedIDs = viper.GetString("slack.allowed_ids")
	}
	if viper.IsSet("github.token") {
		cfg.Platforms.GitHub.Token = viper.GetString("github.token")
	}
	if viper.IsSet("github.webhook_secret") {
		cfg.Platforms.GitHub.WebhookSecret = viper.GetString("github.webhook_secret")
	}
	if viper.IsSet("github.allowed_users") {
		cfg.Platforms.GitHub.AllowedUsers = viper.GetString("github.allowed_users")
	}
	if viper.IsSet("claude.api_key") {
		cfg.Assistants.Claude.APIKey = viper.GetString("claude.api_key")
	}
	if viper.IsSet("claude.model") {
		cfg.Assistants.Claude.Model = viper.GetString("claude.model")
	}
	if viper.IsSet("opencode.api_key") {
		cfg.Assistants.OpenCode.APIKey = viper.GetString("opencode.api_key")
	}
	if viper.IsSet("opencode.base_url") {
		cfg.Assistants.OpenCode.BaseURL = viper.GetString("opencode.base_url")
	}
	if viper.IsSet("opencode.model") {
		cfg.Assistants.OpenCode.Model = viper.GetString("opencode.model")
	}
	if viper.IsSet("worktree.base_dir") {
		cfg.Worktree.BaseDir = viper.GetString("worktree.base_dir")
	}
	if viper.IsSet("worktree.max_per_repo") {
		cfg.Worktree.MaxPerRepo = viper.GetInt("worktree.max_per_repo")
	}
	if viper.IsSet("concurrency.global_limit") {
		cfg.Concurrency.GlobalLimit = viper.GetInt("concurrency.global_limit")
	}
	if viper.IsSet("telemetry.enabled") {
		cfg.Telemetry.Enabled = viper.GetBool("telemetry.enabled")
	}
	if viper.IsSet("telemetry.endpoint") {
		cfg.Telemetry.Endpoint = viper.GetString("telemetry.endpoint")
	}
	if viper.IsSet("telemetry.service_name") {
		cfg.Telemetry.ServiceName = viper.GetString("telemetry.service_name")
	}

	// A platform is enabled whenever its credential ended up non-empty,
	// whichever source (env or config file) supplied it.
	cfg.Platforms.Telegram.Enabled = cfg.Platforms.Telegram.Token != ""
	cfg.Platforms.Discord.Enabled = cfg.Platforms.Discord.BotToken != ""
	cfg.Platforms.Slack.Enabled = cfg.Platforms.Slack.BotToken != ""
	cfg.Platforms.GitHub.Enabled = cfg.Platforms.GitHub.Token != ""

	return cfg, nil
}

func initViper(cfgFile string) error {
	viper.Reset()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			viper.AddConfigPath(cwd)
		}
		viper.AddConfigPath(configDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()
	return nil
}

func bindEnvVars() {
	_ = viper.BindEnv("database_url", "ARCHON_DATABASE_URL")
	_ = viper.BindEnv("api_port", "ARCHON_API_PORT")
	_ = viper.BindEnv("debug", "ARCHON_DEBUG")
	_ = viper.BindEnv("environment", "ARCHON_ENVIRONMENT")

	_ = viper.BindEnv("telegram.token", "ARCHON_TELEGRAM_TOKEN")
	_ = viper.BindEnv("telegram.allowed_user_ids", "ARCHON_TELEGRAM_ALLOWED_IDS")
	_ = viper.BindEnv("discord.bot_token", "ARCHON_DISCORD_BOT_TOKEN")
	_ = viper.BindEnv("discord.allowed_user_ids", "ARCHON_DISCORD_ALLOWED_IDS")
	_ = viper.BindEnv("slack.bot_token", "ARCHON_SLACK_BOT_TOKEN")
	_ = viper.BindEnv("slack.app_token", "ARCHON_SLACK_APP_TOKEN")
	_ = viper.BindEnv("slack.allowed_ids", "ARCHON_SLACK_ALLOWED_IDS")
	_ = viper.BindEnv("github.token", "ARCHON_GITHUB_TOKEN")
	_ = viper.BindEnv("github.webhook_secret", "ARCHON_GITHUB_WEBHOOK_SECRET")
	_ = viper.BindEnv("github.allowed_users", "ARCHON_GITHUB_ALLOWED_USERS")

	_ = viper.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("claude.model", "ARCHON_CLAUDE_MODEL")
	_ = viper.BindEnv("opencode.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("opencode.base_url", "ARCHON_OPENCODE_BASE_URL")
	_ = viper.BindEnv("opencode.model", "ARCHON_OPENCODE_MODEL")

	_ = viper.BindEnv("worktree.base_dir", "ARCHON_WORKTREE_BASE_DIR")
	_ = viper.BindEnv("worktree.max_per_repo", "ARCHON_WORKTREE_MAX_PER_REPO")
	_ = viper.BindEnv("concurrency.global_limit", "ARCHON_CONCURRENCY_LIMIT")

	_ = viper.BindEnv("telemetry.enabled", "ARCHON_TELEMETRY_ENABLED")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = viper.BindEnv("telemetry.service_name", "ARCHON_TELEMETRY_SERVICE_NAME")
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "archon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".archon"
	}
	return filepath.Join(home, ".config", "archon")
}

func defaultDatabasePath() string {
	return filepath.Join(configDir(), "archon.db")
}

func defaultWorktreeBaseDir() string {
	return filepath.Join(configDir(), "worktrees")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
