package bob

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/lap"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/track"
)

type bobRepositories struct {
	trackRepository api.TrackRepository
	gateRepository  api.GateRepository
	lapRepository   api.LapRepository
}

var _ api.Repositories = (*bobRepositories)(nil)

func NewRepositoriesFromPool(pool *pgxpool.Pool) api.Repositories {
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	return NewRepositories(db)
}

func NewRepositories(db bob.DB) api.Repositories {
	return &bobRepositories{
		trackRepository: track.NewTrackRepository(db),
		gateRepository:  gate.NewGateRepository(db),
		lapRepository:   lap.NewLapRepository(db),
	}
}

func (r *bobRepositories) Track() api.TrackRepository {
	return r.trackRepository
}

func (r *bobRepositories) Gate() api.GateRepository {
	return r.gateRepository
}

func (r *bobRepositories) Lap() api.LapRepository {
	return r.lapRepository
}
