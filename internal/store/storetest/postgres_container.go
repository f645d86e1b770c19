// Package storetest provides a disposable Postgres instance for
// repository integration tests, using testcontainers-go and
// docker/go-connections to launch the official postgres image with a
// real wait strategy and a connection string helper.
package storetest

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a disposable Postgres instance for tests.
type PostgresContainer struct {
	container testcontainers.Container
	dbName    string
	user      string
	password  string
}

// PostgresContainerConfig configures the disposable instance.
type PostgresContainerConfig struct {
	Image    string
	DBName   string
	User     string
	Password string
}

// NewPostgresContainer starts a Postgres container and waits for it to
// accept connections.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:16-alpine"
	}
	if cfg.DBName == "" {
		cfg.DBName = "invoices"
	}
	if cfg.User == "" {
		cfg.User = "invoices"
	}
	if cfg.Password == "" {
		cfg.Password = "invoices"
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       cfg.DBName,
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	return &PostgresContainer{
		container: container,
		dbName:    cfg.DBName,
		user:      cfg.User,
		password:  cfg.Password,
	}, nil
}

// GetContainer returns the underlying testcontainer.
func (pc *PostgresContainer) GetContainer() testcontainers.Container {
	return pc.container
}

// GetPort returns the mapped port for Postgres' default 5432/tcp.
func (pc *PostgresContainer) GetPort(ctx context.Context) (nat.Port, error) {
	return pc.container.MappedPort(ctx, "5432/tcp")
}

// DSN builds a lib/pq connection string for this container.
func (pc *PostgresContainer) DSN(ctx context.Context) (string, error) {
	host, err := pc.container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pc.GetPort(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get mapped port: %w", err)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.user, pc.password, host, port.Port(), pc.dbName), nil
}

// Terminate stops and removes the container.
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return pc.container.Terminate(ctx)
}
