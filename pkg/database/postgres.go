package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-class-console/pkg/config"
)

// DSN renders a lib/pq keyword/value connection string, skipping empty settings.
func DSN(cfg config.DatabaseConfig) string {
	parts := make([]string, 0, 6)
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", fmt.Sprintf("%d", cfg.Port))
	}
	add("user", cfg.User)
	add("password", cfg.Password)
	add("dbname", cfg.Name)
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	add("sslmode", sslMode)
	return strings.Join(parts, " ")
}

// NewPostgres opens the submission journal database.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}
