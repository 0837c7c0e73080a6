package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Booking      BookingConfig      `yaml:"booking"`
	Availability AvailabilityConfig `yaml:"availability"`
	Worker       WorkerConfig       `yaml:"worker"`
	Log          LogConfig          `yaml:"log"`
}

type HTTPConfig struct {
	Address          string   `yaml:"address"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	RefreshPerMinute int      `yaml:"refresh_per_minute"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig with an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	AvailabilityTopic  string   `yaml:"availability_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	HoldTTLMinutes       int     `yaml:"hold_ttl_minutes"`
	LockTTLSeconds       int     `yaml:"lock_ttl_seconds"`
	VenuesCacheTTL       int     `yaml:"venues_cache_ttl_seconds"`
	AlternativesLimit    int     `yaml:"alternatives_limit"`
	AlternativesRadiusKM float64 `yaml:"alternatives_radius_km"`
}

type AvailabilityConfig struct {
	Simulate               bool    `yaml:"simulate"`
	SeedAvailableRatio     float64 `yaml:"seed_available_ratio"`
	AmbientIntervalSeconds int     `yaml:"ambient_interval_seconds"`
	RecencyWindowSeconds   int     `yaml:"recency_window_seconds"`
	RecentChangesLimit     int     `yaml:"recent_changes_limit"`
	FetchTimeoutMillis     int     `yaml:"fetch_timeout_ms"`
	SessionIdleMinutes     int     `yaml:"session_idle_minutes"`
}

func (a AvailabilityConfig) AmbientInterval() time.Duration {
	return time.Duration(a.AmbientIntervalSeconds) * time.Second
}

func (a AvailabilityConfig) RecencyWindow() time.Duration {
	return time.Duration(a.RecencyWindowSeconds) * time.Second
}

func (a AvailabilityConfig) FetchTimeout() time.Duration {
	return time.Duration(a.FetchTimeoutMillis) * time.Millisecond
}

func (a AvailabilityConfig) SessionIdle() time.Duration {
	return time.Duration(a.SessionIdleMinutes) * time.Minute
}

type WorkerConfig struct {
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.HTTP.RefreshPerMinute <= 0 {
		c.HTTP.RefreshPerMinute = 12
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		c.Booking.HoldTTLMinutes = 10
	}
	if c.Booking.LockTTLSeconds <= 0 {
		c.Booking.LockTTLSeconds = 30
	}
	if c.Booking.VenuesCacheTTL <= 0 {
		c.Booking.VenuesCacheTTL = 60
	}
	if c.Booking.AlternativesLimit <= 0 {
		c.Booking.AlternativesLimit = 5
	}
	if c.Booking.AlternativesRadiusKM <= 0 {
		c.Booking.AlternativesRadiusKM = 10
	}
	if c.Availability.SeedAvailableRatio <= 0 || c.Availability.SeedAvailableRatio > 1 {
		c.Availability.SeedAvailableRatio = 0.7
	}
	if c.Availability.AmbientIntervalSeconds <= 0 {
		c.Availability.AmbientIntervalSeconds = 15
	}
	if c.Availability.RecencyWindowSeconds <= 0 {
		c.Availability.RecencyWindowSeconds = 10
	}
	if c.Availability.RecentChangesLimit <= 0 {
		c.Availability.RecentChangesLimit = 5
	}
	if c.Availability.FetchTimeoutMillis <= 0 {
		c.Availability.FetchTimeoutMillis = 1000
	}
	if c.Availability.SessionIdleMinutes <= 0 {
		c.Availability.SessionIdleMinutes = 30
	}
	if c.Worker.ExpirationSweepMinutes <= 0 {
		c.Worker.ExpirationSweepMinutes = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
