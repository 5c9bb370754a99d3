package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the configuration settings for the distance service.
// It covers both binaries: the API server (upload, result and synchronous
// endpoints) and the worker (queue consumer).
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port the API server (or the worker monitoring server) listens on.
// - Concurrency: The number of concurrent workers consuming compute tasks.
// - Geocoder: The reverse geocoding provider (none, nominatim, google).
// - GeocoderKey: The API key for the geocoding provider (required for Google).
// - GeocoderRate: Requests per second allowed against the geocoding provider.
// - Database: Configuration settings for the PostgreSQL task store.
// - Redis: Configuration settings for the Redis queue transport.
type Config struct {
	Env          string
	Port         int
	Concurrency  int
	Geocoder     string
	GeocoderKey  string
	GeocoderRate int
	Database     PostgresConfig
	Redis        RedisConfig
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// RedisConfig holds the connection details for the Redis queue transport.
type RedisConfig struct {
	Addr     string // Addr is the Redis server address, host:port.
	Password string // Password is the Redis password, empty when auth is disabled.
	DB       int    // DB is the Redis logical database number.
}

// MustLoad loads the configuration from environment variables (optionally
// seeded from a .env file) and returns a Config struct. It panics on values
// it cannot parse.
func MustLoad() *Config {
	_ = godotenv.Load()

	port, err := strconv.Atoi(setDefaultEnv("DOKKA_PORT", "8080"))
	if err != nil {
		panic("failed to parse port from configuration")
	}

	concurrency, err := strconv.Atoi(setDefaultEnv("DOKKA_CONCURRENCY", "10"))
	if err != nil {
		panic("failed to parse concurrency from configuration, must be an integer type")
	}

	geocoderRate, err := strconv.Atoi(setDefaultEnv("DOKKA_GEOCODER_RATE", "1"))
	if err != nil {
		panic("failed to parse geocoder rate from configuration, must be an integer type")
	}

	redisDB, err := strconv.Atoi(setDefaultEnv("REDIS_DB", "0"))
	if err != nil {
		panic("failed to parse redis db from configuration, must be an integer type")
	}

	return &Config{
		Env:          setDefaultEnv("DOKKA_ENV", "production"),
		Port:         port,
		Concurrency:  concurrency,
		Geocoder:     setDefaultEnv("DOKKA_GEOCODER", "none"),
		GeocoderKey:  os.Getenv("DOKKA_GEOCODER_KEY"),
		GeocoderRate: geocoderRate,
		Database: PostgresConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     setDefaultEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     setDefaultEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
	}
}

func setDefaultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
