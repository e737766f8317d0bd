// Package databasetest starts throwaway PostgreSQL containers for integration tests.
package databasetest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/genotype-insight-server/internal/database"
)

// Instance describes a running test database.
type Instance struct {
	Config database.Config
	URL    string
}

// RequireIntegration skips the test unless INTEGRATION_TESTS=1.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("INTEGRATION_TESTS not set, skipping container-backed test")
	}
}

// generatePassword creates a random password for test databases
func generatePassword() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(b)
}

// StartPostgres runs a PostgreSQL container for the duration of the test.
func StartPostgres(t *testing.T) Instance {
	t.Helper()
	RequireIntegration(t)
	ctx := context.Background()
	password := generatePassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return Instance{
		Config: database.Config{
			Host:        host,
			Port:        port.Int(),
			Database:    "testdb",
			Username:    "testuser",
			Password:    password,
			MaxConns:    10,
			MinConns:    2,
			MaxConnLife: time.Hour,
			MaxConnIdle: 30 * time.Minute,
			SSLMode:     "disable",
		},
		URL: fmt.Sprintf("postgres://testuser:%s@%s:%s/testdb?sslmode=disable", password, host, port.Port()),
	}
}
