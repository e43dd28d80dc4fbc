//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/gaterace-service-go/pkg/db/migrate"
	database "github.com/mpapenbr/gaterace-service-go/pkg/db/postgres"
)

// SetupTestDb starts (or reuses) a postgres container with the gaterace schema
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	container, err := SetupPostgres(ctx)
	if err != nil {
		log.Fatal(err)
	}
	dbURL, err := container.URL(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return setupPool(dbURL)
}

// SetupExternalTestDb uses the database referenced by TESTDB_URL
func SetupExternalTestDb() *pgxpool.Pool {
	return setupPool(os.Getenv("TESTDB_URL"))
}

func setupPool(dbURL string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbURL); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithURL(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

func ClearLapTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from lap")
}

func ClearGateTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from gate")
}

func ClearTrackTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from track")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearLapTable(pool)
	ClearGateTable(pool)
	ClearTrackTable(pool)
}
