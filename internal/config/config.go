package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const DefaultBanner = "https://images.unsplash.com/photo-1502790671504-542ad42d5189?auto=format&fit=crop&w=1100&q=80"

type Config struct {
	Discord         DiscordConfig      `yaml:"discord"`
	IDs             IDConfig           `yaml:"ids"`
	APIs            APIConfig          `yaml:"apis"`
	ImageLinks      []string           `yaml:"image_links"`
	ProfileBanners  []string           `yaml:"profile_banners" validate:"dive,url"`
	WelcomeMessages []string           `yaml:"welcome_messages"`
	GoodbyeMessages []string           `yaml:"goodbye_messages"`
	Presence        PresenceConfig     `yaml:"presence"`
	Database        DatabaseConfig     `yaml:"database"`
	N8n             N8nConfig          `yaml:"n8n"`
	Leveling        LevelingConfig     `yaml:"leveling"`
	ReactionRoles   ReactionRoleConfig `yaml:"reaction_roles"`
	Search          SearchConfig       `yaml:"search"`
	Health          HealthConfig       `yaml:"health"`
	LogLevel        string             `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type DiscordConfig struct {
	Name    string `yaml:"name"`
	Token   string `yaml:"token" validate:"required"`
	GuildID string `yaml:"guild_id" validate:"omitempty,number"`
}

type IDConfig struct {
	OwnerID               string `yaml:"owner_id" validate:"omitempty,number"`
	WelcomeChannelID      string `yaml:"welcome_channel_id" validate:"omitempty,number"`
	LeaveChannelID        string `yaml:"leave_channel_id" validate:"omitempty,number"`
	ReportChannelID       string `yaml:"report_channel_id" validate:"omitempty,number"`
	ErrorChannelID        string `yaml:"error_channel_id" validate:"omitempty,number"`
	JoinRoleID            string `yaml:"join_role_id" validate:"omitempty,number"`
	ColorCycleRoleID      string `yaml:"color_cycle_role_id" validate:"omitempty,number"`
	ReactionRoleChannelID string `yaml:"reaction_role_channel_id" validate:"omitempty,number"`
	ReactionRoleMessageID string `yaml:"reaction_role_message_id" validate:"omitempty,number"`
}

type APIConfig struct {
	SauceNao       string `yaml:"saucenao"`
	DanbooruLogin  string `yaml:"danbooru_login"`
	DanbooruAPIKey string `yaml:"danbooru_api_key"`
}

type PresenceConfig struct {
	Statuses        []string `yaml:"statuses"`
	IntervalSeconds int      `yaml:"interval_seconds" validate:"gte=15"`
}

type DatabaseConfig struct {
	Driver                 string `yaml:"driver" validate:"oneof=mongo postgres memory"`
	MongoURI               string `yaml:"mongo_uri" validate:"required_if=Driver mongo"`
	Name                   string `yaml:"name" validate:"required_if=Driver mongo"`
	ProfileCollection      string `yaml:"profile_collection"`
	ReactionRoleCollection string `yaml:"reaction_role_collection"`
	PostgresDSN            string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	TimeoutSeconds         int    `yaml:"timeout_seconds" validate:"gt=0"`
}

type N8nConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

type LevelingConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"gt=0"`
	CleanupSeconds  int `yaml:"cleanup_seconds" validate:"gtefield=CooldownSeconds"`
	XPPerMessage    int `yaml:"xp_per_message" validate:"gt=0"`
	XPPerCommand    int `yaml:"xp_per_command" validate:"gte=0"`
}

type ReactionRoleConfig struct {
	ColorCycleMinutes int `yaml:"color_cycle_minutes" validate:"gte=1"`
}

type SearchConfig struct {
	MaxPerWindow    int `yaml:"max_per_window" validate:"gt=0"`
	WindowSeconds   int `yaml:"window_seconds" validate:"gt=0"`
	TimeoutSeconds  int `yaml:"timeout_seconds" validate:"gt=0"`
	CacheSize       int `yaml:"cache_size" validate:"gt=0"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" validate:"gt=0"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

func DefaultConfig() Config {
	return Config{
		Discord:        DiscordConfig{Name: "Hearth"},
		ProfileBanners: []string{DefaultBanner},
		Presence:       PresenceConfig{IntervalSeconds: 120},
		Database: DatabaseConfig{
			Driver:                 "mongo",
			MongoURI:               "mongodb://localhost:27017",
			Name:                   "hearth",
			ProfileCollection:      "profiles",
			ReactionRoleCollection: "reaction_roles",
			TimeoutSeconds:         5,
		},
		Leveling:      LevelingConfig{CooldownSeconds: 3, CleanupSeconds: 30, XPPerMessage: 1, XPPerCommand: 10},
		ReactionRoles: ReactionRoleConfig{ColorCycleMinutes: 45},
		Search:        SearchConfig{MaxPerWindow: 4, WindowSeconds: 60, TimeoutSeconds: 20, CacheSize: 128, CacheTTLMinutes: 30},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		LogLevel:      "info",
	}
}

// Path returns the settings file location.
func Path() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFile(Path())
	if err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	if cfg.Discord.Token == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile merges the YAML file over the defaults. A missing file is not an error.
func loadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Discord.Token = envString("DISCORD_TOKEN", cfg.Discord.Token)
	cfg.Discord.GuildID = envString("DISCORD_GUILD_ID", cfg.Discord.GuildID)
	cfg.IDs.OwnerID = envString("OWNER_ID", cfg.IDs.OwnerID)
	cfg.APIs.SauceNao = envString("SAUCENAO_API_KEY", cfg.APIs.SauceNao)
	cfg.APIs.DanbooruLogin = envString("DANBOORU_LOGIN", cfg.APIs.DanbooruLogin)
	cfg.APIs.DanbooruAPIKey = envString("DANBOORU_API_KEY", cfg.APIs.DanbooruAPIKey)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.MongoURI = envString("MONGO_URI", cfg.Database.MongoURI)
	cfg.Database.Name = envString("DATABASE_NAME", cfg.Database.Name)
	cfg.Database.PostgresDSN = envString("POSTGRES_DSN", cfg.Database.PostgresDSN)
	cfg.N8n.WebhookURL = envString("N8N_WEBHOOK_URL", cfg.N8n.WebhookURL)
	cfg.Leveling.CooldownSeconds = envInt("LEVELING_COOLDOWN_SECONDS", cfg.Leveling.CooldownSeconds)
	cfg.Leveling.CleanupSeconds = envInt("LEVELING_CLEANUP_SECONDS", cfg.Leveling.CleanupSeconds)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
