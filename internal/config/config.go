package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Config holds application configuration values.
type Config struct {
	Secret        string
	Passcode      string
	DatabaseDSN   string
	HTTPPort      string
	BottleCatalog string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	// Shared venue passcode exchanged for a session token at /auth/login.
	passcode := os.Getenv("VENUE_PASSCODE")
	if passcode == "" {
		passcode = "barra"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:barpos.db?_pragma=foreign_keys(ON)"
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Warn().Str("port", port).Msg("invalid HTTP_PORT value, defaulting to 8080")
		port = "8080"
	}

	return Config{
		Secret:        secret,
		Passcode:      passcode,
		DatabaseDSN:   dsn,
		HTTPPort:      port,
		BottleCatalog: os.Getenv("BOTTLE_CATALOG"),
	}
}
