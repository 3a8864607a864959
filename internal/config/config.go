package config

import (
	"fmt"
	"os"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PolicySuffix    = "suffix"
	PolicyOverwrite = "overwrite"
	PolicyUUID      = "uuid"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimezone string
	DBPath     string
	DBLogLevel string

	MediaRoot         string
	CollisionPolicy   string
	MaxMultipartMemMB int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsChannel string

	ElasticAddr     string
	ElasticUsername string
	ElasticPassword string
	ElasticIndex    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:    getenv("PORT", "8080"),
		GinMode: getenv("GIN_MODE", ""),

		DBDriver:   getenv("DB_DRIVER", DriverPostgres),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "posts"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),
		DBTimezone: getenv("DB_TIMEZONE", "UTC"),
		DBPath:     getenv("DB_PATH", "posts.db"),
		DBLogLevel: getenv("DB_LOG_LEVEL", "warn"),

		MediaRoot:         getenv("MEDIA_ROOT", "media"),
		CollisionPolicy:   getenv("UPLOAD_COLLISION_POLICY", PolicySuffix),
		MaxMultipartMemMB: getenvi("MAX_MULTIPART_MEMORY_MB", 32),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvi("REDIS_DB", 0),
		EventsChannel: getenv("EVENTS_CHANNEL", "posts.created"),

		ElasticAddr:     getenv("ELASTICSEARCH_ADDR", ""),
		ElasticUsername: getenv("ELASTICSEARCH_USERNAME", ""),
		ElasticPassword: getenv("ELASTICSEARCH_PASSWORD", ""),
		ElasticIndex:    getenv("ELASTICSEARCH_INDEX", "posts"),
	}
}

// Validate rejects values the rest of the app cannot act on.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.CollisionPolicy {
	case PolicySuffix, PolicyOverwrite, PolicyUUID:
	default:
		return fmt.Errorf("unknown UPLOAD_COLLISION_POLICY %q", c.CollisionPolicy)
	}
	if c.MediaRoot == "" {
		return fmt.Errorf("MEDIA_ROOT must not be empty")
	}
	if c.MaxMultipartMemMB <= 0 {
		return fmt.Errorf("MAX_MULTIPART_MEMORY_MB must be positive, got %d", c.MaxMultipartMemMB)
	}
	return nil
}

// PostgresDSN builds the keyword/value DSN used by the postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}
