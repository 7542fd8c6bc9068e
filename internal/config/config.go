package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath       string
	ItemsCSVPath string

	// Server settings
	ServerHost string
	ServerPort int

	// Auth settings
	JWTSecret string

	// Object storage settings
	AWSBucket       string
	AWSRegion       string
	AWSEndpoint     string
	AWSProfile      string
	SignedURLExpiry time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
// Secrets and the bucket name are read from the environment only.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:          DefaultDBPath,
		ItemsCSVPath:    DefaultItemsCSVPath,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		JWTSecret:       GetEnvString("FEEDAPI_JWT_SECRET", ""),
		AWSBucket:       GetEnvString("FEEDAPI_AWS_BUCKET", ""),
		AWSRegion:       DefaultAWSRegion,
		SignedURLExpiry: DefaultSignedURLExpiry,
		LogLevel:        logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ValidateServer reports settings the API server cannot run without.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (FEEDAPI_JWT_SECRET)"))
	}
	if c.AWSBucket == "" {
		errs = append(errs, errors.New("bucket is required (FEEDAPI_AWS_BUCKET)"))
	}
	if c.SignedURLExpiry <= 0 {
		errs = append(errs, fmt.Errorf("signed url expiry must be positive, got %s", c.SignedURLExpiry))
	}
	return errors.Join(errs...)
}
