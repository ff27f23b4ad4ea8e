package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/scoring"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

const (
	ProviderOpenMeteo = "openmeteo"
	ProviderTomorrow  = "tomorrow"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Timezone    string `envconfig:"TIMEZONE" default:"Asia/Jerusalem" validate:"required"`
	CatalogPath string `envconfig:"TRAIL_CATALOG"`

	Server         ServerConfig
	Weather        WeatherConfig
	Cache          CacheConfig
	CircuitBreaker CircuitBreakerConfig
	Scoring        ScoringConfig

	location *time.Location
}

type ServerConfig struct {
	Port         string        `envconfig:"FIBER_PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout  time.Duration `envconfig:"FIBER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"FIBER_WRITE_TIMEOUT" default:"60s"`
	CORSOrigins  string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type WeatherConfig struct {
	Provider         string        `envconfig:"WEATHER_PROVIDER" default:"openmeteo" validate:"oneof=openmeteo tomorrow"`
	OpenMeteoURL     string        `envconfig:"OPENMETEO_URL" default:"https://api.open-meteo.com/v1" validate:"url"`
	TomorrowURL      string        `envconfig:"TOMORROW_URL" default:"https://api.tomorrow.io/v4" validate:"url"`
	TomorrowAPIKey   string        `envconfig:"TOMORROW_API_KEY"`
	TomorrowRelayURL string        `envconfig:"TOMORROW_RELAY_URL" validate:"omitempty,url"`
	RequestTimeout   time.Duration `envconfig:"WEATHER_REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
	BatchSize        int           `envconfig:"FETCH_BATCH_SIZE" default:"5" validate:"min=3,max=5"`
	BatchDelay       time.Duration `envconfig:"FETCH_BATCH_DELAY" default:"300ms" validate:"min=100ms,max=1s"`
	ReferenceHour    int           `envconfig:"REFERENCE_HOUR" default:"9" validate:"min=0,max=23"`
	RainWindowHours  int           `envconfig:"RAIN_WINDOW_HOURS" default:"48" validate:"min=24,max=96"`
}

type CacheConfig struct {
	Backend       string        `envconfig:"CACHE_BACKEND" default:"sqlite" validate:"oneof=memory sqlite"`
	Path          string        `envconfig:"CACHE_PATH" default:"ride-or-mud.db"`
	MaxAge        time.Duration `envconfig:"CACHE_MAX_AGE" default:"2h" validate:"min=1m"`
	MaxEntries    int           `envconfig:"CACHE_MAX_ENTRIES" default:"500" validate:"min=0"`
	PruneSchedule string        `envconfig:"CACHE_PRUNE_SCHEDULE" default:"@every 30m" validate:"required"`
}

type CircuitBreakerConfig struct {
	Threshold int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"3" validate:"min=1"`
	Timeout   time.Duration `envconfig:"CIRCUIT_BREAKER_TIMEOUT" default:"30s"`
}

type ScoringConfig struct {
	AvgSpeedKmh       float64 `envconfig:"AVG_SPEED_KMH" default:"80" validate:"gt=0"`
	RoadFactor        float64 `envconfig:"ROAD_FACTOR" default:"1.3" validate:"gte=1"`
	MaxDriveMinutes   int     `envconfig:"MAX_DRIVE_MINUTES" default:"75" validate:"gt=0"`
	EnableSlipPenalty bool    `envconfig:"ENABLE_SLIP_PENALTY" default:"true"`
	SlipRainMM        float64 `envconfig:"SLIP_RAIN_MM" default:"2" validate:"gte=0"`
	GreenThreshold    int     `envconfig:"SCORE_GREEN_THRESHOLD" default:"70" validate:"min=0,max=100"`
	YellowThreshold   int     `envconfig:"SCORE_YELLOW_THRESHOLD" default:"40" validate:"min=0,max=100"`
}

// LoadConfig reads .env (if present) and the environment, then validates the
// result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if c.Weather.Provider == ProviderTomorrow && c.Weather.TomorrowAPIKey == "" && c.Weather.TomorrowRelayURL == "" {
		return errors.New("configuration validation failed: tomorrow provider needs TOMORROW_API_KEY or TOMORROW_RELAY_URL")
	}
	if c.Scoring.YellowThreshold > c.Scoring.GreenThreshold {
		return fmt.Errorf("configuration validation failed: yellow threshold %d above green threshold %d",
			c.Scoring.YellowThreshold, c.Scoring.GreenThreshold)
	}
	if c.Cache.Backend == BackendSQLite && c.Cache.Path == "" {
		return errors.New("configuration validation failed: sqlite cache needs CACHE_PATH")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("configuration validation failed: timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location is the zone used for target dates and provider timestamps.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) ZapLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func (c *Config) ScoringParams(home models.HomeLocation) scoring.Params {
	p := scoring.DefaultParams()
	p.Home = home
	p.AvgSpeedKmh = c.Scoring.AvgSpeedKmh
	p.RoadFactor = c.Scoring.RoadFactor
	p.MaxDriveMinutes = c.Scoring.MaxDriveMinutes
	p.EnableSlip = c.Scoring.EnableSlipPenalty
	p.SlipRainMM = c.Scoring.SlipRainMM
	p.GreenThreshold = c.Scoring.GreenThreshold
	p.YellowThreshold = c.Scoring.YellowThreshold
	return p
}

func (c *Config) ParseOptions() client.ParseOptions {
	opts := client.DefaultParseOptions()
	opts.RefHour = c.Weather.ReferenceHour
	opts.WindowHours = c.Weather.RainWindowHours
	opts.Location = c.Location()
	return opts
}

func (c *Config) ClientConfig() client.ClientConfig {
	return client.ClientConfig{
		Timeout:        c.Weather.RequestTimeout,
		Threshold:      c.CircuitBreaker.Threshold,
		BreakerTimeout: c.CircuitBreaker.Timeout,
	}
}
