// Package testutil holds fixtures shared by integration tests. Everything
// here skips the calling test when the backing service is unreachable,
// unless TEST_REQUIRE_INFRA (or the per-service variant) is set.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	// pgx registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/driveline/driveline/internal/migrate"
)

// DBSettings locates the Postgres instance used by integration tests.
type DBSettings struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DBSettingsFromEnv reads TEST_DB_* variables. The default port matches the
// test profile in docker-compose; CI points TEST_DB_PORT at 5432.
func DBSettingsFromEnv() DBSettings {
	return DBSettings{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "driveline"),
		Password: envOr("TEST_DB_PASSWORD", "driveline"),
		Name:     envOr("TEST_DB_NAME", "driveline"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders the settings as a pgx URL. A non-empty schema is put first on
// the search_path.
func (s DBSettings) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.User, s.Password),
		Host:   net.JoinHostPort(s.Host, s.Port),
		Path:   "/" + s.Name,
	}
	q := url.Values{}
	q.Set("sslmode", s.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WithMigratedDB hands fn a connection scoped to a throwaway schema that
// has every migration applied. The schema is dropped when the test ends.
func WithMigratedDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	fn(MigratedDB(t))
}

// MigratedDB is WithMigratedDB without the callback.
func MigratedDB(t testing.TB) *sql.DB {
	t.Helper()
	settings := DBSettingsFromEnv()

	admin := openAndPing(t, settings.DSN(""))
	schema := "t_" + randomSuffix()
	if _, err := admin.ExecContext(shortCtx(t), "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db := openAndPing(t, settings.DSN(schema))
	db.SetMaxOpenConns(10)
	t.Cleanup(func() {
		_ = db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		_ = admin.Close()
	})

	if err := migrate.Run(shortCtx(t), db); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	t.Logf("using schema %s", schema)
	return db
}

func openAndPing(t testing.TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err == nil {
		err = db.PingContext(shortCtx(t))
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		unavailable(t, "TEST_REQUIRE_DB", "postgres", err)
	}
	return db
}

// TestTime is the fixed instant fixtures are stamped with.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func shortCtx(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// unavailable skips, or fails when the environment demands the service.
func unavailable(t testing.TB, requireVar, what string, err error) {
	t.Helper()
	if truthy(requireVar) || truthy("TEST_REQUIRE_INFRA") {
		t.Fatalf("%s not available: %v", what, err)
	}
	t.Skipf("%s not available: %v", what, err)
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(time.Now().Format("150405.000000"), ".", "")
	}
	return hex.EncodeToString(b)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func truthy(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
