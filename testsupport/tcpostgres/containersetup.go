package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:16-alpine"
	defaultName  = "gaterace-postgres-test"
	defaultDB    = "gaterace"
	defaultUser  = "gaterace"
	defaultPass  = "password"
)

var pgPort = nat.Port("5432/tcp")

// PostgresContainer is a running postgres holding the test database for
// tracks, gates and laps.
type PostgresContainer struct {
	testcontainers.Container
	user     string
	password string
	dbName   string
}

type (
	PostgresContainerOption func(s *containerSetup)
	containerSetup          struct {
		req      testcontainers.ContainerRequest
		user     string
		password string
		dbName   string
	}
)

func WithWaitStrategy(strategies ...wait.Strategy) PostgresContainerOption {
	return func(s *containerSetup) {
		s.req.WaitingFor = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

func WithImage(image string) PostgresContainerOption {
	return func(s *containerSetup) {
		s.req.Image = image
	}
}

// WithName sets the container name. Containers with the same name are
// shared between test packages.
func WithName(containerName string) PostgresContainerOption {
	return func(s *containerSetup) {
		s.req.Name = containerName
	}
}

func WithInitialDatabase(user, password, dbName string) PostgresContainerOption {
	return func(s *containerSetup) {
		s.user, s.password, s.dbName = user, password, dbName
	}
}

func newContainerSetup(opts ...PostgresContainerOption) *containerSetup {
	s := &containerSetup{
		req: testcontainers.ContainerRequest{
			Image:        defaultImage,
			Name:         defaultName,
			ExposedPorts: []string{string(pgPort)},
			Cmd:          []string{"postgres", "-c", "fsync=off"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		user:     defaultUser,
		password: defaultPass,
		dbName:   defaultDB,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.req.Env = map[string]string{
		"POSTGRES_USER":     s.user,
		"POSTGRES_PASSWORD": s.password,
		"POSTGRES_DB":       s.dbName,
	}
	return s
}

// SetupPostgres starts a postgres container. The container is reused
// between test packages if a container with the same name is running.
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	s := newContainerSetup(opts...)
	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: s.req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, err
	}
	return &PostgresContainer{
		Container: container,
		user:      s.user,
		password:  s.password,
		dbName:    s.dbName,
	}, nil
}

// URL returns the connection url of the test database.
func (c *PostgresContainer) URL(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, pgPort)
	if err != nil {
		return "", err
	}
	return dbURL(c.user, c.password, host, port.Port(), c.dbName), nil
}

func dbURL(user, password, host, port, dbName string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", user, password, host, port, dbName)
}
