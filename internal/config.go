package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// SecurityConfig holds the secret used by the auth provider to sign access
// tokens. The storefront only verifies them.
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type PaymentConfig struct {
	DefaultProvider string            `mapstructure:"default_provider"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	CallbackBaseURL string            `mapstructure:"callback_base_url"`
	SuccessURL      string            `mapstructure:"success_url"`
	ErrorURL        string            `mapstructure:"error_url"`
	ExchangeRates   map[string]string `mapstructure:"exchange_rates"`
	Epoint          EpointConfig      `mapstructure:"epoint"`
	Payriff         PayriffConfig     `mapstructure:"payriff"`
	Reconcile       ReconcileConfig   `mapstructure:"reconcile"`
}

type EpointConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	APIURL                 string `mapstructure:"api_url"`
	PublicKey              string `mapstructure:"public_key"`
	PrivateKey             string `mapstructure:"private_key"`
	Currency               string `mapstructure:"currency"`
	Language               string `mapstructure:"language"`
	RequireSignedCallbacks bool   `mapstructure:"require_signed_callbacks"`
}

type PayriffConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	APIURL        string `mapstructure:"api_url"`
	MerchantID    string `mapstructure:"merchant_id"`
	SecretKey     string `mapstructure:"secret_key"`
	Language      string `mapstructure:"language"`
	CallbackToken string `mapstructure:"callback_token"`
}

type ReconcileConfig struct {
	MaxWorkers   int           `mapstructure:"max_workers"`
	JobQueueSize int           `mapstructure:"job_queue_size"`
	PendingAfter time.Duration `mapstructure:"pending_after"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV -----------------

// LoadConfigFromEnv builds the configuration for container deployments where
// no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			DefaultProvider: getEnv("PAYMENT_DEFAULT_PROVIDER", "epoint"),
			RequestTimeout:  getEnvAsDuration("PAYMENT_REQUEST_TIMEOUT", 15*time.Second),
			CallbackBaseURL: getEnv("PAYMENT_CALLBACK_BASE_URL", ""),
			SuccessURL:      getEnv("PAYMENT_SUCCESS_URL", ""),
			ErrorURL:        getEnv("PAYMENT_ERROR_URL", ""),
			ExchangeRates:   parseRates(getEnv("PAYMENT_EXCHANGE_RATES", "")),
			Epoint: EpointConfig{
				Enabled:                getEnv("EPOINT_ENABLED", "true") == "true",
				APIURL:                 getEnv("EPOINT_API_URL", "https://epoint.az"),
				PublicKey:              getEnv("EPOINT_PUBLIC_KEY", ""),
				PrivateKey:             getEnv("EPOINT_PRIVATE_KEY", ""),
				Currency:               getEnv("EPOINT_CURRENCY", "AZN"),
				Language:               getEnv("EPOINT_LANGUAGE", "az"),
				RequireSignedCallbacks: getEnv("EPOINT_REQUIRE_SIGNED_CALLBACKS", "false") == "true",
			},
			Payriff: PayriffConfig{
				Enabled:       getEnv("PAYRIFF_ENABLED", "false") == "true",
				APIURL:        getEnv("PAYRIFF_API_URL", "https://api.payriff.com"),
				MerchantID:    getEnv("PAYRIFF_MERCHANT_ID", ""),
				SecretKey:     getEnv("PAYRIFF_SECRET_KEY", ""),
				Language:      getEnv("PAYRIFF_LANGUAGE", "EN"),
				CallbackToken: getEnv("PAYRIFF_CALLBACK_TOKEN", ""),
			},
			Reconcile: ReconcileConfig{
				MaxWorkers:   getEnvAsInt("RECONCILE_MAX_WORKERS", 4),
				JobQueueSize: getEnvAsInt("RECONCILE_JOB_QUEUE_SIZE", 100),
				PendingAfter: getEnvAsDuration("RECONCILE_PENDING_AFTER", 15*time.Minute),
				BatchSize:    getEnvAsInt("RECONCILE_BATCH_SIZE", 200),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// parseRates reads "USD=1.70,EUR=1.85".
func parseRates(raw string) map[string]string {
	rates := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		code, rate, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = strings.TrimSpace(rate)
	}
	return rates
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if c.Security.JWTSecret == "" {
		errs = append(errs, "security config: jwt_secret is required")
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *PaymentConfig) Validate() error {
	if c.DefaultProvider == "" {
		return errors.New("default_provider is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}

	enabled := map[string]bool{
		"epoint":  c.Epoint.Enabled,
		"payriff": c.Payriff.Enabled,
	}
	if !enabled[c.DefaultProvider] {
		return fmt.Errorf("default_provider %q is not an enabled provider", c.DefaultProvider)
	}

	if c.Epoint.Enabled {
		if c.Epoint.APIURL == "" || c.Epoint.PublicKey == "" || c.Epoint.PrivateKey == "" {
			return errors.New("epoint requires api_url, public_key and private_key")
		}
		if c.Epoint.Currency == "" {
			return errors.New("epoint currency is required")
		}
	}
	if c.Payriff.Enabled {
		if c.Payriff.APIURL == "" || c.Payriff.MerchantID == "" || c.Payriff.SecretKey == "" {
			return errors.New("payriff requires api_url, merchant_id and secret_key")
		}
	}

	for code, rate := range c.ExchangeRates {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("exchange rate for %s must be a positive number", strings.ToUpper(code))
		}
	}
	return nil
}
