package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Token           string
	GuildID         string
	DiscordDisabled bool

	Store       string
	DatabaseURL      string
	DatabaseMaxConns int
	DatabaseMinConns int
	Migrations       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LeaseTTL      time.Duration

	ReminderMinutes     int
	MaxCapacity         int
	DefaultLocale       string
	SchedulerRetryDelay time.Duration

	HealthAddr  string
	Environment string
	LogLevel    string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	// .env is optional when the variables come from the environment (Docker, CI, etc.).
	_ = godotenv.Load()

	cfg := &Config{
		Token:           os.Getenv("TOKEN"),
		GuildID:         os.Getenv("GUILD_ID"),
		DiscordDisabled: getBool("DISCORD_DISABLED", false),

		Store:       strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: getInt("DATABASE_MAX_CONNS", 10),
		DatabaseMinConns: getInt("DATABASE_MIN_CONNS", 0),
		Migrations:       getBool("MIGRATIONS", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		LeaseTTL:      getDuration("LEASE_TTL", 30*time.Second),

		ReminderMinutes:     getInt("REMINDER_MINUTES", 30),
		MaxCapacity:         getInt("MAX_CAPACITY", 50),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "ja"),
		SchedulerRetryDelay: getDuration("SCHEDULER_RETRY_DELAY", 30*time.Second),

		HealthAddr:  healthAddr(),
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !c.DiscordDisabled && strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("config: TOKEN is required unless DISCORD_DISABLED=true")
	}

	for _, r := range c.GuildID {
		if r < '0' || r > '9' {
			return fmt.Errorf("config: GUILD_ID must be a Discord guild ID (digits only)")
		}
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			// Local default when DATABASE_URL is not provided.
			c.DatabaseURL = "postgres://localhost:5432/withgames?sslmode=disable"
		}
		parsed, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("config: invalid DATABASE_URL (%q): %w", c.DatabaseURL, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: invalid DATABASE_URL (%q): missing scheme or host", c.DatabaseURL)
		}
		if c.DatabaseMaxConns < 1 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
			return fmt.Errorf("config: need 0 <= DATABASE_MIN_CONNS (%d) <= DATABASE_MAX_CONNS (%d), max at least 1",
				c.DatabaseMinConns, c.DatabaseMaxConns)
		}
	default:
		return fmt.Errorf("config: STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.ReminderMinutes < 0 || c.ReminderMinutes > 7*24*60 {
		return fmt.Errorf("config: REMINDER_MINUTES must be between 0 and 10080, got %d", c.ReminderMinutes)
	}
	if c.MaxCapacity < 1 {
		return fmt.Errorf("config: MAX_CAPACITY must be at least 1, got %d", c.MaxCapacity)
	}
	if c.SchedulerRetryDelay <= 0 {
		return fmt.Errorf("config: SCHEDULER_RETRY_DELAY must be positive")
	}
	if c.RedisAddr != "" && c.LeaseTTL < time.Second {
		return fmt.Errorf("config: LEASE_TTL must be at least 1s, got %s", c.LeaseTTL)
	}

	return nil
}

// IsDevelopment reports whether ENVIRONMENT selects the development logger.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local":
		return true
	}
	return false
}

func healthAddr() string {
	if addr := os.Getenv("HEALTH_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
