package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret    string `mapstructure:"JWT_SECRET"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// WSEnabled toggles the live WebSocket fan-out; when off, queue events
	// only reach the structured log.
	WSEnabled bool `mapstructure:"WS_ENABLED"`

	// Queue admission tuning. The check-in window is how far before and
	// after the scheduled time a visitor may check in; visit minutes is the
	// per-visit service duration used for wait estimation; emergency minutes
	// is the wait added to shifted entries when an emergency preempts them.
	CheckinWindowBeforeMin int `mapstructure:"CHECKIN_WINDOW_BEFORE_MIN"`
	CheckinWindowAfterMin  int `mapstructure:"CHECKIN_WINDOW_AFTER_MIN"`
	VisitMinutes           int `mapstructure:"VISIT_MINUTES"`
	EmergencyMinutes       int `mapstructure:"EMERGENCY_MINUTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("WS_ENABLED", true)
	v.SetDefault("CHECKIN_WINDOW_BEFORE_MIN", 20)
	v.SetDefault("CHECKIN_WINDOW_AFTER_MIN", 15)
	v.SetDefault("VISIT_MINUTES", 5)
	v.SetDefault("EMERGENCY_MINUTES", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("WS_ENABLED")
	v.BindEnv("CHECKIN_WINDOW_BEFORE_MIN")
	v.BindEnv("CHECKIN_WINDOW_AFTER_MIN")
	v.BindEnv("VISIT_MINUTES")
	v.BindEnv("EMERGENCY_MINUTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CheckinWindowBeforeMin < 0 || cfg.CheckinWindowAfterMin < 0 {
		return nil, fmt.Errorf("check-in window minutes must not be negative")
	}
	if cfg.VisitMinutes <= 0 {
		return nil, fmt.Errorf("VISIT_MINUTES must be positive")
	}
	if cfg.EmergencyMinutes <= 0 {
		return nil, fmt.Errorf("EMERGENCY_MINUTES must be positive")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
