package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port          string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string

	SessionTTL   time.Duration
	CookieSecure bool

	// Header directive values are a deployment concern; the middleware
	// always sends the headers, these only control what is sent.
	ContentSecurityPolicy string
	StrictTransport       string

	AllowedOrigins []string
}

// Load reads configuration from the environment, consulting a .env file
// when one exists in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getenv("PORT", "8080"),
		PostgresDSN:   getenv("POSTGRES_DSN", ""),
		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		SessionTTL:   getduration("SESSION_TTL", 24*time.Hour),
		CookieSecure: getenv("COOKIE_SECURE", "false") == "true",

		ContentSecurityPolicy: getenv("CONTENT_SECURITY_POLICY",
			"default-src 'self'; frame-ancestors 'none'"),
		StrictTransport: getenv("STRICT_TRANSPORT_SECURITY",
			"max-age=31536000; includeSubDomains"),

		AllowedOrigins: []string{getenv("ALLOWED_ORIGIN", "http://localhost:5173")},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
