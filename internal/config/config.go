package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Notify     NotifyConfig     `yaml:"notify"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	// DraftTTLSeconds bounds how long an unfinished draft is kept.
	DraftTTLSeconds int `yaml:"draft_ttl_seconds"`
	// MaxBookingDays bounds how far ahead a service date may be.
	MaxBookingDays int `yaml:"max_booking_days"`
	// RateLimit* throttle flow mutations per session.
	RateLimitRequests int `yaml:"rate_limit_requests"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type NotifyConfig struct {
	Sheets   SheetsChannelConfig   `yaml:"sheets"`
	Email    EmailChannelConfig    `yaml:"email"`
	Telegram TelegramChannelConfig `yaml:"telegram"`
	// Support contact shown to the customer when every channel fails.
	SupportEmail string `yaml:"support_email"`
	SupportPhone string `yaml:"support_phone"`
}

type SheetsChannelConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type EmailChannelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	EndpointURL string `yaml:"endpoint_url"`
	ToEmail     string `yaml:"to_email"`
}

type TelegramChannelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config, expanding ${ENV} references after loading .env
// when present.
func Load(configPath string) (*Config, error) {
	// .env is optional; environment may already be populated.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Notify.Sheets.Enabled {
		if c.Notify.Sheets.CredentialsFile == "" || c.Notify.Sheets.SpreadsheetID == "" {
			return errors.New("sheets notify channel requires credentials_file and spreadsheet_id")
		}
	}
	if c.Notify.Email.Enabled && c.Notify.Email.EndpointURL == "" {
		return errors.New("email notify channel requires endpoint_url")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == 0 {
			return errors.New("telegram notify channel requires bot_token and chat_id")
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Booking.DraftTTLSeconds == 0 {
		c.Booking.DraftTTLSeconds = 24 * 60 * 60
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = 90
	}
	if c.Booking.RateLimitRequests == 0 {
		c.Booking.RateLimitRequests = 20
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = 60
	}

	if c.Notify.Sheets.SheetName == "" {
		c.Notify.Sheets.SheetName = "Bookings"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
