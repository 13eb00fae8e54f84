// Package dbtest provisions throwaway databases for tests that need a real
// Postgres. Tests using it are skipped when DATABASE_TEST_DSN is not set.
package dbtest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/sabimarket/sabimarket-backend/db/migrations"
)

const testDSNEnvVar = "DATABASE_TEST_DSN"

// DB is a disposable database created from the DSN in DATABASE_TEST_DSN.
type DB struct {
	DSN  string
	name string
	root *sqlx.DB
}

// OpenWithoutMigrations creates a fresh randomly-named database and returns a
// handle to it. The database is dropped on test cleanup.
func OpenWithoutMigrations(t *testing.T) *DB {
	t.Helper()

	rootDSN := os.Getenv(testDSNEnvVar)
	if rootDSN == "" {
		t.Skipf("skipping DB test: %s is not set", testDSNEnvVar)
	}

	root, err := sqlx.Open("postgres", rootDSN)
	if err != nil {
		t.Fatalf("opening root test database: %v", err)
	}

	name := fmt.Sprintf("test_%s", strings.ToLower(randomSuffix()))
	if _, err = root.Exec(fmt.Sprintf("CREATE DATABASE %q", name)); err != nil {
		t.Fatalf("creating test database %s: %v", name, err)
	}

	u, err := url.Parse(rootDSN)
	if err != nil {
		t.Fatalf("parsing %s: %v", testDSNEnvVar, err)
	}
	u.Path = "/" + name

	db := &DB{DSN: u.String(), name: name, root: root}
	t.Cleanup(func() {
		if _, dropErr := root.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %q WITH (FORCE)", name)); dropErr != nil {
			t.Logf("dropping test database %s: %v", name, dropErr)
		}
		root.Close()
	})
	return db
}

// Open creates a fresh database and applies all migrations to it.
func Open(t *testing.T) *DB {
	t.Helper()

	db := OpenWithoutMigrations(t)

	conn := db.Open(t)
	defer conn.Close()

	ms := migrate.MigrationSet{TableName: "marketplace_migrations"}
	source := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	if _, err := ms.ExecMax(conn.DB, "postgres", source, migrate.Up, 0); err != nil {
		t.Fatalf("applying migrations to test database: %v", err)
	}

	return db
}

// Open returns a new connection to the test database.
func (db *DB) Open(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := sqlx.Open("postgres", db.DSN)
	if err != nil {
		t.Fatalf("opening test database connection: %v", err)
	}
	return conn
}

func randomSuffix() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
