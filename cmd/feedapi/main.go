package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"reddot-watch/feedapi/internal/auth"
	"reddot-watch/feedapi/internal/config"
	"reddot-watch/feedapi/internal/database"
	"reddot-watch/feedapi/internal/database/migrations"
	importitems "reddot-watch/feedapi/internal/import"
	"reddot-watch/feedapi/internal/server"
	"reddot-watch/feedapi/internal/signer"
)

const usage = `Usage: feedapi [command] [options]
Commands: server, import, token, rollback

For command-specific options, use: feedapi [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// commonFlags registers the options every command shares.
func commonFlags(fs *flag.FlagSet, cfg *config.Config, logLevel *string) {
	fs.StringVar(&cfg.DBPath, "db", config.GetEnvString("FEEDAPI_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: FEEDAPI_DB_PATH)")
	fs.StringVar(logLevel, "log-level", config.GetEnvLogLevel("FEEDAPI_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: FEEDAPI_LOG_LEVEL)")
}

func main() {
	if err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		log.Warn().Err(err).Str("path", config.DefaultEnvFile).Msg("Failed to load env file")
	}

	cfg := config.DefaultConfig()
	var logLevelStr string

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	commonFlags(serverCmd, cfg, &logLevelStr)
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("FEEDAPI_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: FEEDAPI_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("FEEDAPI_PORT", config.DefaultServerPort),
		"Port to listen on (env: FEEDAPI_PORT)")
	serverCmd.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret,
		"Shared secret for bearer tokens (env: FEEDAPI_JWT_SECRET)")
	serverCmd.StringVar(&cfg.AWSBucket, "bucket", cfg.AWSBucket,
		"Bucket holding feed media (env: FEEDAPI_AWS_BUCKET)")
	serverCmd.StringVar(&cfg.AWSRegion, "region", config.GetEnvString("FEEDAPI_AWS_REGION", config.DefaultAWSRegion),
		"Bucket region (env: FEEDAPI_AWS_REGION)")
	serverCmd.StringVar(&cfg.AWSEndpoint, "endpoint", config.GetEnvString("FEEDAPI_AWS_ENDPOINT", ""),
		"Custom S3-compatible endpoint, enables path-style URLs (env: FEEDAPI_AWS_ENDPOINT)")
	serverCmd.StringVar(&cfg.AWSProfile, "profile", config.GetEnvString("FEEDAPI_AWS_PROFILE", ""),
		"AWS shared config profile (env: FEEDAPI_AWS_PROFILE)")
	serverCmd.DurationVar(&cfg.SignedURLExpiry, "url-expiry", config.GetEnvDuration("FEEDAPI_SIGNED_URL_EXPIRY", config.DefaultSignedURLExpiry),
		"Lifetime of signed URLs (env: FEEDAPI_SIGNED_URL_EXPIRY)")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	commonFlags(importCmd, cfg, &logLevelStr)
	importCmd.StringVar(&cfg.ItemsCSVPath, "csv", config.GetEnvString("FEEDAPI_CSV_PATH", config.DefaultItemsCSVPath),
		"Path or http(s) URL of a caption,url CSV file (env: FEEDAPI_CSV_PATH)")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	commonFlags(tokenCmd, cfg, &logLevelStr)
	tokenCmd.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret,
		"Shared secret for bearer tokens (env: FEEDAPI_JWT_SECRET)")
	subject := tokenCmd.String("subject", "feedapi-cli", "Token subject")
	ttl := tokenCmd.Duration("ttl", config.DefaultTokenTTL, "Token lifetime")

	rollbackCmd := flag.NewFlagSet("rollback", flag.ExitOnError)
	commonFlags(rollbackCmd, cfg, &logLevelStr)
	steps := rollbackCmd.Int("steps", 1, "Number of migrations to roll back")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var fs *flag.FlagSet
	var run func() error

	switch os.Args[1] {
	case "server":
		fs, run = serverCmd, func() error { return runServer(cfg) }
	case "import":
		fs, run = importCmd, func() error { return runImport(cfg) }
	case "token":
		fs, run = tokenCmd, func() error { return runToken(cfg, *subject, *ttl) }
	case "rollback":
		fs, run = rollbackCmd, func() error { return runRollback(cfg, *steps) }
	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)
	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	fs.Parse(os.Args[2:])

	if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if err := run(); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

// runServer opens the database and the bucket signer, then serves the API.
func runServer(cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	urlSigner, err := signer.NewS3Signer(ctx, signer.Config{
		Bucket:   cfg.AWSBucket,
		Region:   cfg.AWSRegion,
		Endpoint: cfg.AWSEndpoint,
		Profile:  cfg.AWSProfile,
		Expiry:   cfg.SignedURLExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize url signer: %w", err)
	}

	log.Info().
		Str("bucket", cfg.AWSBucket).
		Str("region", cfg.AWSRegion).
		Dur("url_expiry", cfg.SignedURLExpiry).
		Msg("Signed URL provider ready")

	return server.RunServer(db, urlSigner, auth.NewValidator(cfg.JWTSecret), cfg.ListenAddr(), log.Logger)
}

// runImport seeds feed items from a CSV source.
func runImport(cfg *config.Config) error {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	res, err := importitems.NewImporter(db).ImportItems(context.Background(), cfg.ItemsCSVPath)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d of %d feed items\n", res.Imported, res.Total)
	if len(res.Problems) > 0 {
		fmt.Printf("Encountered %d problems:\n", len(res.Problems))
		for _, p := range res.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}
	return nil
}

// runToken prints a bearer token accepted by a server sharing the secret.
func runToken(cfg *config.Config, subject string, ttl time.Duration) error {
	token, err := auth.NewIssuer(cfg.JWTSecret).Issue(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// runRollback reverts the most recent schema migrations.
func runRollback(cfg *config.Config, steps int) error {
	dbCfg := database.NewConfig(cfg.DBPath)
	dbCfg.SkipMigrations = true

	db, err := database.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	loaded, err := migrations.LoadMigrations(migrations.Files)
	if err != nil {
		return err
	}
	return migrations.RollbackMigrations(db.DB.DB, loaded, steps)
}
