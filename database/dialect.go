package database

import (
	"fmt"
	"strings"

	"dcorpbot/config"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect picks the gorm dialector for the configured database type.
func Dialect(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DatabaseSQLite, "":
		return sqlite.Open(sqliteDSN(cfg.Path)), nil
	case config.DatabasePostgres:
		sqlDB, err := openPostgres(postgresDSN(cfg))
		if err != nil {
			return nil, err
		}
		return postgres.New(postgres.Config{Conn: sqlDB}), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "bot_database.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func postgresDSN(cfg config.Database) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}
