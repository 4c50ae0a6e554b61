package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"charter-reconciliation/internal/config"
	"charter-reconciliation/internal/database"
	"charter-reconciliation/internal/handlers"
	"charter-reconciliation/internal/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Migration command (up/down/version)")
	steps := flag.Int("steps", 0, "Number of migration steps (0 means all)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}

	if *migrateCmd != "" {
		handleMigration(cfg, *migrateCmd, *steps)
		return
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}
	defer db.Close()

	router := handlers.SetupRouter(db, cfg)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server exited gracefully")
}

func handleMigration(cfg *config.Config, command string, steps int) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Migration.Dir),
		cfg.GetMigrationDBURL(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "no change") {
			log.Info().Msg("no migration changes to apply")
			return
		}
		log.Fatal().Err(err).Msg("failed to initialize migrate")
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			if verErr == migrate.ErrNilVersion {
				log.Info().Msg("no migrations have been applied yet")
				return
			}
			log.Fatal().Err(verErr).Msg("failed to get version")
		}
		fmt.Printf("Current migration version: %d (dirty: %v)\n", version, dirty)
		return
	default:
		log.Fatal().Str("command", command).Msg("invalid migration command")
	}

	if err != nil {
		if err == migrate.ErrNoChange {
			log.Info().Msg("no migration changes to apply")
			return
		}
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Msg("migration completed successfully")
}
