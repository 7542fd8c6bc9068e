package config

import "time"

// Constants defining default values for application configuration
const (
	DefaultDBPath       = "./feed.db"
	DefaultItemsCSVPath = "./feed.csv"
	DefaultEnvFile      = ".env"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultAWSRegion       = "us-east-1"
	DefaultSignedURLExpiry = 5 * time.Minute

	DefaultTokenTTL = 24 * time.Hour

	DefaultLogLevel = "debug"
)
