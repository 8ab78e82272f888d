package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/biyariq/storefront/internal/infrastructure/config"
	"github.com/biyariq/storefront/internal/infrastructure/gueststore"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName),
			zap.Error(err),
		)
	}

	m, err := gueststore.NewSchemaMigrator(db, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
		if err == nil {
			log.Info("Guest store schema rolled back")
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			log.Info("Guest store schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
		err = verr
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Applies the guest store schema to the postgres database from config.toml
(STOREFRONT_DATABASE_* environment variables override it).

Commands:
  up        Apply all pending migrations
  down      Roll back all migrations
  version   Print the applied version

Flags:
  -log-level string   Log level (debug, info, warn, error) (default "info")
`)
}
