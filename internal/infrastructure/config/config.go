package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Security SecurityConfig `koanf:"security"`
	Payment  PaymentConfig  `koanf:"payment"`
	Booking  BookingConfig  `koanf:"booking"`
	Upload   UploadConfig   `koanf:"upload"`
	Privacy  PrivacyConfig  `koanf:"privacy"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type SecurityConfig struct {
	EncryptionSecret string        `koanf:"encryption_secret"`
	SessionDuration  time.Duration `koanf:"session_duration"`

	Login LoginConfig     `koanf:"login"`
	API   APIPolicyConfig `koanf:"api"`
}

// LoginConfig layers two independent throttles: a fixed-window limiter on
// username+ip and a persistent lockout record on username alone.
type LoginConfig struct {
	RateLimitAttempts int           `koanf:"rate_limit_attempts"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	MaxFailedAttempts int           `koanf:"max_failed_attempts"`
	LockoutDuration   time.Duration `koanf:"lockout_duration"`
}

type APIPolicyConfig struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

type PaymentConfig struct {
	MinAmount         float64  `koanf:"min_amount"`
	MaxAmount         float64  `koanf:"max_amount"`
	AllowedCurrencies []string `koanf:"allowed_currencies"`
	RequireCVV        bool     `koanf:"require_cvv"`
}

type BookingConfig struct {
	MaxGuests          int     `koanf:"max_guests"`
	MaxDurationDays    int     `koanf:"max_duration_days"`
	MinAdvanceDays     int     `koanf:"min_advance_days"`
	MaxAdvanceDays     int     `koanf:"max_advance_days"`
	MaxPriceChangePct  float64 `koanf:"max_price_change_pct"`
	SuspicionThreshold int     `koanf:"suspicion_threshold"`
}

type UploadConfig struct {
	MaxFileSize       int64    `koanf:"max_file_size"`
	MaxFilesPerUpload int      `koanf:"max_files_per_upload"`
	MaxUploadsPerHour int      `koanf:"max_uploads_per_hour"`
	AllowedMIMETypes  []string `koanf:"allowed_mime_types"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

type PrivacyConfig struct {
	RetentionPeriod time.Duration `koanf:"retention_period"`
	SensitiveFields []string      `koanf:"sensitive_fields"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Security: SecurityConfig{
			SessionDuration: 24 * time.Hour,
			Login: LoginConfig{
				RateLimitAttempts: 5,
				RateLimitWindow:   15 * time.Minute,
				MaxFailedAttempts: 5,
				LockoutDuration:   30 * time.Minute,
			},
			API: APIPolicyConfig{
				MaxRequests: 100,
				Window:      time.Minute,
			},
		},
		Payment: PaymentConfig{
			MinAmount:         1,
			MaxAmount:         50000,
			AllowedCurrencies: []string{"EUR", "USD", "GBP"},
			RequireCVV:        true,
		},
		Booking: BookingConfig{
			MaxGuests:          20,
			MaxDurationDays:    30,
			MinAdvanceDays:     1,
			MaxAdvanceDays:     365,
			MaxPriceChangePct:  50,
			SuspicionThreshold: 5,
		},
		Upload: UploadConfig{
			MaxFileSize:       10 << 20, // 10 MB
			MaxFilesPerUpload: 10,
			MaxUploadsPerHour: 10,
			AllowedMIMETypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		},
		Privacy: PrivacyConfig{
			RetentionPeriod: 30 * 24 * time.Hour,
			SensitiveFields: []string{"passport_number", "date_of_birth", "payment_reference"},
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		_ = err
	}

	// Override with environment variables
	if err := k.Load(env.Provider("CSB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CSB_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Environment == "production" && c.Security.EncryptionSecret == "" {
		return fmt.Errorf("security.encryption_secret is required in production")
	}
	if c.Security.Login.MaxFailedAttempts < 1 {
		return fmt.Errorf("security.login.max_failed_attempts must be positive")
	}
	if c.Payment.MinAmount < 0 || c.Payment.MaxAmount <= c.Payment.MinAmount {
		return fmt.Errorf("payment amount bounds are inconsistent")
	}
	if c.Booking.MinAdvanceDays > c.Booking.MaxAdvanceDays {
		return fmt.Errorf("booking advance window is inconsistent")
	}
	return nil
}
