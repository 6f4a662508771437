package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goliatone/go-statusfor/internal/runtimeconfig"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database and wraps it with the matching
// bun dialect. sqlite pools are pinned to one connection so in-memory
// databases survive between statements.
func Open(cfg runtimeconfig.StorageConfig) (*bun.DB, error) {
	dialectName := strings.ToLower(strings.TrimSpace(cfg.Dialect))
	driver := cfg.DriverName()

	var dialect schema.Dialect
	switch dialectName {
	case "sqlite", "":
		dialectName = "sqlite"
		dialect = sqlitedialect.New()
	case "postgres":
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("%w: %s", runtimeconfig.ErrStorageDialectUnknown, cfg.Dialect)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, runtimeconfig.ErrStorageDSNRequired
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	db := bun.NewDB(sqlDB, dialect)
	if dialectName == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
