// Package testinfra starts throwaway PostgreSQL and Redis containers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresUser     = "clover"
	PostgresPassword = "clover"
	PostgresDB       = "clover"
)

type Service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func (s *Service) Terminate(ctx context.Context) error {
	if s == nil || s.Container == nil {
		return nil
	}
	return s.Container.Terminate(ctx)
}

// Addr is host:port of the mapped service port.
func (s *Service) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// PostgresDSN is a lib/pq connection string for the container started by StartPostgres.
func (s *Service) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.Host, s.Port, PostgresUser, PostgresPassword, PostgresDB)
}

func StartPostgres(ctx context.Context) (*Service, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     PostgresUser,
			"POSTGRES_PASSWORD": PostgresPassword,
			"POSTGRES_DB":       PostgresDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	return start(ctx, req, "5432")
}

func StartRedis(ctx context.Context) (*Service, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}
	return start(ctx, req, "6379")
}

func start(ctx context.Context, req testcontainers.ContainerRequest, port string) (*Service, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Service{Container: container, Host: host, Port: mapped.Port()}, nil
}
