package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
)

// encryptedPrefix marks an environment value as a fernet token.
const encryptedPrefix = "fernet:"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Resolver ResolverConfig
	Batch    BatchConfig
	Schedule ScheduleConfig
	Sources  SourcesConfig
	Events   EventsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds the log level ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level string
}

// ResolverConfig tunes the price resolution tiers.
type ResolverConfig struct {
	MemoryTTL          time.Duration // memory tier freshness
	Cooldown           time.Duration // minimum gap between live attempts for one ticker
	FetchTimeout       time.Duration // per adapter call
	PersistentMaxAge   time.Duration // staleness window of the persistent fallback
	HistoryLookback    time.Duration // window for the historical average used by estimates
	EstimateJitter     float64       // fractional bound on estimate jitter
	InitialReliability float64
	MaxPrice           float64 // upper plausibility bound for a live price
}

// BatchConfig tunes the batch reconciler.
type BatchConfig struct {
	BatchSize         int
	PerBatchTimeout   time.Duration
	MaxRetries        int // total attempts per batch
	RetryDelay        time.Duration
	InterBatchDelay   time.Duration
	JobTimeout        time.Duration
	ErrorSummaryCap   int
	DailyStaleHours   int
	CatchUpStaleHours int
}

// ScheduleConfig holds the cron specs of the background jobs.
type ScheduleConfig struct {
	Enabled              bool
	Timezone             string
	DailySpec            string
	CatchUpSpec          string
	CleanupSpec          string
	JobRetentionDays     int
	HistoryRetentionDays int
}

// SourcesConfig holds the external quote provider settings.
// API keys may be given in plain text or as "fernet:<token>" encrypted with SecretKey.
type SourcesConfig struct {
	SecretKey          string
	AlphaVantageKey    string
	FinnhubKey         string
	YahooPerSecond     float64
	AlphaVantagePerMin float64
	FinnhubPerMin      float64
	FailureThreshold   int
	FailureCooloff     time.Duration
}

// EventsConfig configures job completion events. Events are disabled without brokers.
type EventsConfig struct {
	KafkaBrokers []string
	Topic        string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	p := &parser{}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/portfolio_valuation.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost",
			}),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Resolver: ResolverConfig{
			MemoryTTL:          p.duration("PRICE_MEMORY_TTL", 5*time.Minute),
			Cooldown:           p.duration("PRICE_FETCH_COOLDOWN", 30*time.Second),
			FetchTimeout:       p.duration("PRICE_FETCH_TIMEOUT", 10*time.Second),
			PersistentMaxAge:   p.duration("PRICE_PERSISTENT_MAX_AGE", 48*time.Hour),
			HistoryLookback:    p.duration("PRICE_HISTORY_LOOKBACK", 30*24*time.Hour),
			EstimateJitter:     p.float("PRICE_ESTIMATE_JITTER", 0.02),
			InitialReliability: p.float("PRICE_INITIAL_RELIABILITY", 0.5),
			MaxPrice:           p.float("PRICE_MAX_PLAUSIBLE", 10000),
		},
		Batch: BatchConfig{
			BatchSize:         p.int("BATCH_SIZE", 50),
			PerBatchTimeout:   p.duration("BATCH_TIMEOUT", 300*time.Second),
			MaxRetries:        p.int("BATCH_MAX_RETRIES", 3),
			RetryDelay:        p.duration("BATCH_RETRY_DELAY", 60*time.Second),
			InterBatchDelay:   p.duration("BATCH_INTER_DELAY", 2*time.Second),
			JobTimeout:        p.duration("BATCH_JOB_TIMEOUT", 2*time.Hour),
			ErrorSummaryCap:   p.int("BATCH_ERROR_SUMMARY_CAP", 10),
			DailyStaleHours:   p.int("BATCH_DAILY_STALE_HOURS", 24),
			CatchUpStaleHours: p.int("BATCH_CATCHUP_STALE_HOURS", 72),
		},
		Schedule: ScheduleConfig{
			Enabled:              p.bool("SCHEDULER_ENABLED", true),
			Timezone:             getEnv("SCHEDULER_TIMEZONE", "UTC"),
			DailySpec:            getEnv("SCHEDULE_DAILY", "0 17 * * *"),
			CatchUpSpec:          getEnv("SCHEDULE_CATCHUP", "0 9 * * 6"),
			CleanupSpec:          getEnv("SCHEDULE_CLEANUP", "0 3 * * 0"),
			JobRetentionDays:     p.int("JOB_RETENTION_DAYS", 90),
			HistoryRetentionDays: p.int("PRICE_HISTORY_RETENTION_DAYS", 7),
		},
		Sources: SourcesConfig{
			SecretKey:          getEnv("SECRET_KEY", ""),
			YahooPerSecond:     p.float("YAHOO_RATE_PER_SECOND", 2),
			AlphaVantagePerMin: p.float("ALPHA_VANTAGE_RATE_PER_MINUTE", 5),
			FinnhubPerMin:      p.float("FINNHUB_RATE_PER_MINUTE", 60),
			FailureThreshold:   p.int("SOURCE_FAILURE_THRESHOLD", 5),
			FailureCooloff:     p.duration("SOURCE_FAILURE_COOLOFF", 5*time.Minute),
		},
		Events: EventsConfig{
			KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:        getEnv("KAFKA_TOPIC", "batch_job_completed"),
		},
	}

	config.Sources.AlphaVantageKey = p.secret("ALPHA_VANTAGE_API_KEY", config.Sources.SecretKey)
	config.Sources.FinnhubKey = p.secret("FINNHUB_API_KEY", config.Sources.SecretKey)

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	if err := config.validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(p.errs...))
	}

	return config, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Batch.BatchSize < 1 {
		errs = append(errs, errors.New("BATCH_SIZE must be at least 1"))
	}
	if c.Batch.MaxRetries < 1 {
		errs = append(errs, errors.New("BATCH_MAX_RETRIES must be at least 1"))
	}
	if c.Resolver.EstimateJitter < 0 || c.Resolver.EstimateJitter > 0.1 {
		errs = append(errs, errors.New("PRICE_ESTIMATE_JITTER must be between 0 and 0.1"))
	}
	if c.Resolver.InitialReliability < 0 || c.Resolver.InitialReliability > 1 {
		errs = append(errs, errors.New("PRICE_INITIAL_RELIABILITY must be between 0 and 1"))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects typed lookups so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (p *parser) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return f
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

// duration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

// secret returns the variable, decrypting it first when it carries the fernet prefix.
func (p *parser) secret(key, secretKey string) string {
	value := os.Getenv(key)
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value
	}
	plain, err := Decrypt(strings.TrimPrefix(value, encryptedPrefix), secretKey)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return ""
	}
	return plain
}

// Encrypt produces a fernet token for value, suitable for storing in the environment
// behind the "fernet:" prefix.
func Encrypt(value, secretKey string) (string, error) {
	key, err := fernet.DecodeKey(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret key: %w", err)
	}
	tok, err := fernet.EncryptAndSign([]byte(value), key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a fernet token with the given key.
func Decrypt(token, secretKey string) (string, error) {
	if secretKey == "" {
		return "", errors.New("SECRET_KEY is required to decrypt values")
	}
	key, err := fernet.DecodeKey(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret key: %w", err)
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{key})
	if msg == nil {
		return "", errors.New("failed to decrypt value: invalid token or key")
	}
	return string(msg), nil
}
