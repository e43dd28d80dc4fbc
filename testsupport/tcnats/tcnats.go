// Package tcnats provides a NATS server with JetStream for tests.
package tcnats

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Connect returns a connection to a (reused) NATS container.
// TESTNATS_URL selects an external server instead.
func Connect() *nats.Conn {
	url := os.Getenv("TESTNATS_URL")
	if url == "" {
		url = startContainer()
	}
	conn, err := nats.Connect(url, nats.Name("grs-test"), nats.Timeout(5*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	return conn
}

func startContainer() string {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "4222")
	if err != nil {
		log.Fatal(err)
	}
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "nats:2.10-alpine",
				Name:         "gaterace-nats-test",
				Cmd:          []string{"-js"},
				ExposedPorts: []string{string(port)},
				WaitingFor: wait.ForLog("Server is ready").
					WithStartupTimeout(30 * time.Second),
			},
			Started: true,
			Reuse:   true,
		})
	if err != nil {
		log.Fatal(err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		log.Fatal(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return fmt.Sprintf("nats://%s:%s", host, mapped.Port())
}
