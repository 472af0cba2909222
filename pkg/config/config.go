package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment  string
	LogLevel     string
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Supabase     SupabaseConfig
	ContentStore ContentStoreConfig
	OpenAI       OpenAIConfig
	Improvement  ImprovementConfig
	OTEL         OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	RunMigrations bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled bool
	// URL (redis:// or rediss://) takes precedence over Host/Port when set
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces cache keys; the Next.js site shares the instance
	KeyPrefix string
}

// SupabaseConfig holds the hosted backend credentials
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	JWTSecret  string
}

// ContentStoreConfig selects where listings, articles and news are read from
type ContentStoreConfig struct {
	// Driver is "postgrest" or "postgres"
	Driver  string
	Timeout time.Duration
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
}

// ImprovementConfig tunes the content improvement pipeline
type ImprovementConfig struct {
	// Provider is "openai" or "mock"
	Provider          string
	ProviderTimeout   time.Duration
	StoreMaxAttempts  int
	StoreInitialDelay time.Duration
	StoreMaxDelay     time.Duration
	RateLimitPerHour  int
	QualityRulesPath  string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", ""),
			Database:      getEnv("DB_NAME", "postgres"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			RunMigrations: getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Enabled:   getEnvAsBool("REDIS_ENABLED", true),
			URL:       getEnv("REDIS_URL", ""),
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnvAsInt("REDIS_PORT", 6379),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "karasu:"),
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		},
		ContentStore: ContentStoreConfig{
			Driver:  getEnv("CONTENT_STORE", "postgrest"),
			Timeout: getEnvAsDuration("CONTENT_STORE_TIMEOUT", 15*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Improvement: ImprovementConfig{
			Provider:          getEnv("IMPROVER_PROVIDER", "openai"),
			ProviderTimeout:   getEnvAsDuration("IMPROVEMENT_PROVIDER_TIMEOUT", 45*time.Second),
			StoreMaxAttempts:  getEnvAsInt("STORE_RETRY_ATTEMPTS", 3),
			StoreInitialDelay: getEnvAsDuration("STORE_RETRY_INITIAL_DELAY", time.Second),
			StoreMaxDelay:     getEnvAsDuration("STORE_RETRY_MAX_DELAY", 5*time.Second),
			RateLimitPerHour:  getEnvAsInt("IMPROVEMENT_RATE_LIMIT_PER_HOUR", 20),
			QualityRulesPath:  getEnv("QUALITY_RULES_PATH", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "karasu-emlak-backend"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the binaries cannot start with
func (c *Config) Validate() error {
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	switch c.ContentStore.Driver {
	case "postgrest":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return fmt.Errorf("CONTENT_STORE=postgrest requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown CONTENT_STORE %q", c.ContentStore.Driver)
	}

	switch c.Improvement.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown IMPROVER_PROVIDER %q", c.Improvement.Provider)
	}

	if c.Improvement.ProviderTimeout <= 0 {
		return fmt.Errorf("IMPROVEMENT_PROVIDER_TIMEOUT must be positive")
	}
	if c.Improvement.StoreMaxAttempts < 1 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

// IsDevelopment reports whether the service runs locally
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
