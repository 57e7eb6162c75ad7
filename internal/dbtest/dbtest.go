// Package dbtest provides integration-test database setup: a shared
// pgvector-enabled Postgres testcontainer (started once per test binary),
// with a fresh logical database created per test for isolation. A fresh
// CREATE DATABASE is used per test rather than a shared schema/search_path
// swap because pgvector's CREATE EXTENSION is database-scoped, not
// schema-scoped.
package dbtest

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/database"
)

var (
	containerOnce sync.Once
	containerErr  error
	adminCfg      config.DatabaseConfig
)

// New starts the shared container on first use, creates a fresh database
// for this test, applies migrations, and returns a ready Client. The
// database is dropped on test cleanup.
func New(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()

	containerOnce.Do(func() { startContainer(ctx) })
	require.NoError(t, containerErr, "failed to start shared postgres testcontainer")

	dbName := generateDBName(t)

	admin, err := sql.Open("pgx", dsn(adminCfg))
	require.NoError(t, err)
	defer admin.Close()

	_, err = admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	require.NoError(t, err, "create test database")
	t.Cleanup(func() {
		cleanupAdmin, err := sql.Open("pgx", dsn(adminCfg))
		if err != nil {
			return
		}
		defer cleanupAdmin.Close()
		_, _ = cleanupAdmin.ExecContext(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
	})

	cfg := adminCfg
	cfg.Database = dbName
	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err, "connect to fresh test database")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func startContainer(ctx context.Context) {
	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase("rcrt_admin"),
		postgres.WithUsername("rcrt"),
		postgres.WithPassword("rcrt"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		containerErr = fmt.Errorf("start postgres container: %w", err)
		return
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		containerErr = fmt.Errorf("resolve container host: %w", err)
		return
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		containerErr = fmt.Errorf("resolve container port: %w", err)
		return
	}

	adminCfg = config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "rcrt",
		Password:        "rcrt",
		Database:        "rcrt_admin",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Hour,
	}
}

func dsn(cfg config.DatabaseConfig) string {
	return cfg.DSN()
}

// generateDBName builds a unique, Postgres-identifier-safe database name
// from the test name plus a random suffix.
func generateDBName(t *testing.T) string {
	name := strings.ToLower(t.Name())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("test_%s_%s", name, hex.EncodeToString(suffix))
}
