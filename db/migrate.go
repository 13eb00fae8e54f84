package db

import (
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/sabimarket/sabimarket-backend/db/migrations"
)

const migrationsTableName = "marketplace_migrations"

// Migrate applies (or rolls back) up to count migrations against the database
// at dbURL. count == 0 applies all pending migrations.
func Migrate(dbURL string, dir migrate.MigrationDirection, count int) (int, error) {
	pool, err := OpenDBConnectionPool(dbURL)
	if err != nil {
		return 0, fmt.Errorf("opening db connection pool for migrations: %w", err)
	}
	defer pool.Close()

	ms := migrate.MigrationSet{TableName: migrationsTableName}
	source := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	return ms.ExecMax(pool.SqlDB(), pool.DriverName(), source, dir, count)
}
