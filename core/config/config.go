package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	GoogleAPI GoogleAPIConfig
	App       AppConfig
	Sync      SyncConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GoogleAPIConfig struct {
	ClientID     string
	ClientSecret string
}

type AppConfig struct {
	// PublicBaseURL is the externally reachable address of this installation,
	// used for the OAuth redirect URI and the webhook callback URL.
	PublicBaseURL string
	// SigningSecret keys the credential cipher. When empty, a secret is
	// generated once and persisted in sync_settings.
	SigningSecret string
	JWTSecret     string
	LogLevel      string
	// Timezone is the installation's local timezone, used when formatting
	// appointment date/time pairs for Google.
	Timezone string
}

type SyncConfig struct {
	// CalendarEnabled is the default position of the calendar sync toggle for
	// a fresh connection.
	CalendarEnabled bool
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Init loads configuration from the environment (and an optional .env file)
// and caches it for GetSafe.
func Init() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.public_base_url", "http://localhost:7070")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("sync.calendar_enabled", true)

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Name:     v.GetString("database.name"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		GoogleAPI: GoogleAPIConfig{
			ClientID:     v.GetString("google.client_id"),
			ClientSecret: v.GetString("google.client_secret"),
		},
		App: AppConfig{
			PublicBaseURL: strings.TrimRight(v.GetString("app.public_base_url"), "/"),
			SigningSecret: v.GetString("app.signing_secret"),
			JWTSecret:     v.GetString("app.jwt_secret"),
			LogLevel:      v.GetString("app.log_level"),
			Timezone:      v.GetString("app.timezone"),
		},
		Sync: SyncConfig{
			CalendarEnabled: v.GetBool("sync.calendar_enabled"),
		},
	}

	if cfg.App.JWTSecret == "" {
		return nil, fmt.Errorf("APP_JWT_SECRET is required")
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

// GetSafe returns the cached config and whether Init has run.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil, false
	}
	return instance, true
}

// SetForTest replaces the cached config. Test helper only.
func SetForTest(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// RedirectURI is the OAuth callback address derived from the public base URL.
func (g GoogleAPIConfig) RedirectURI(publicBaseURL string) string {
	return publicBaseURL + "/api/v1/public/credentials/google/callback"
}

// WebhookCallbackURL is the push-notification address Google delivers to.
func WebhookCallbackURL(publicBaseURL string) string {
	return publicBaseURL + "/api/v1/public/google-calendar/webhook"
}
