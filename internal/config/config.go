package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"charter-reconciliation/internal/matching"
)

type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string
	Database      DatabaseConfig
	Migration     MigrationConfig
	Matching      MatchingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MigrationConfig struct {
	Dir string
}

type MatchingConfig struct {
	ToleranceDays   int
	ToleranceAmount string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("MIGRATION_DIR", "migrations")
	viper.SetDefault("MATCH_TOLERANCE_DAYS", matching.DefaultToleranceDays)
	viper.SetDefault("MATCH_TOLERANCE_AMOUNT", "0.01")

	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(".env"); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		LogLevel:      viper.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Migration: MigrationConfig{
			Dir: viper.GetString("MIGRATION_DIR"),
		},
		Matching: MatchingConfig{
			ToleranceDays:   viper.GetInt("MATCH_TOLERANCE_DAYS"),
			ToleranceAmount: viper.GetString("MATCH_TOLERANCE_AMOUNT"),
		},
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection URL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetMigrationDBURL returns the database URL for migrations.
func (c *Config) GetMigrationDBURL() string {
	return c.GetDSN()
}

// Tolerance returns the configured default matching tolerance. Callers may
// widen it per run; historical gaps have needed windows up to 60 days.
func (c *Config) Tolerance() matching.Tolerance {
	tol := matching.DefaultTolerance()
	if c.Matching.ToleranceDays > 0 {
		tol.Days = c.Matching.ToleranceDays
	}
	if amt, err := decimal.NewFromString(c.Matching.ToleranceAmount); err == nil && amt.IsPositive() {
		tol.Amount = amt
	}
	return tol
}
