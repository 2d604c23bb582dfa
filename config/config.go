package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BaseURL        string
	UserAgent      string
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	MaxPagesCap    int
	MaxRetries     int
	FetchMode      string
	ChromeBin      string

	LogLevel  string
	LogFormat string

	CSVOutputPath  string
	JSONOutputPath string
	HTTPAddr       string
}

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Load reads the .env file (if any) and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "finn")
	v.SetDefault("POSTGRES_PASSWORD", "finn123")
	v.SetDefault("POSTGRES_DB", "finn_deals")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("FINN_BASE_URL", "https://www.finn.no")
	v.SetDefault("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("REQUEST_DELAY_MS", 500)
	v.SetDefault("REQUEST_TIMEOUT_MS", 10000)
	v.SetDefault("MAX_PAGES_CAP", 10)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("FETCH_MODE", FetchModeHTTP)
	v.SetDefault("CHROME_BIN", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("CSV_OUTPUT_PATH", "./output/finn_deals.csv")
	v.SetDefault("JSON_OUTPUT_PATH", "./output/finn_deals.json")
	v.SetDefault("HTTP_ADDR", ":8080")
	return v
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		BaseURL:        v.GetString("FINN_BASE_URL"),
		UserAgent:      v.GetString("USER_AGENT"),
		RequestDelay:   time.Duration(v.GetInt("REQUEST_DELAY_MS")) * time.Millisecond,
		RequestTimeout: time.Duration(v.GetInt("REQUEST_TIMEOUT_MS")) * time.Millisecond,
		MaxPagesCap:    v.GetInt("MAX_PAGES_CAP"),
		MaxRetries:     v.GetInt("MAX_RETRIES"),
		FetchMode:      v.GetString("FETCH_MODE"),
		ChromeBin:      v.GetString("CHROME_BIN"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		CSVOutputPath:  v.GetString("CSV_OUTPUT_PATH"),
		JSONOutputPath: v.GetString("JSON_OUTPUT_PATH"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
	}

	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxPagesCap <= 0 {
		cfg.MaxPagesCap = 10
	}
	if cfg.FetchMode != FetchModeBrowser {
		cfg.FetchMode = FetchModeHTTP
	}
	return cfg
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
