package api

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
)

var ErrNoRows = errors.New("no rows in result set")

type Repositories interface {
	Track() TrackRepository
	Gate() GateRepository
	Lap() LapRepository
}

// TrackRepository only returns tracks that are not soft deleted unless
// stated otherwise.
type TrackRepository interface {
	// Create stores track and fills in the generated fields.
	Create(ctx context.Context, track *model.Track) error
	LoadByID(ctx context.Context, id int32) (*model.Track, error)
	LoadByStart(ctx context.Context, key model.StartKey) (*model.Track, error)
	LoadByName(ctx context.Context, name string) (*model.Track, error)
	LoadAll(ctx context.Context) ([]*model.Track, error)
	// SoftDelete marks the track as deleted, returns number of affected rows.
	SoftDelete(ctx context.Context, id int32) (int, error)
}

type GateRepository interface {
	Create(ctx context.Context, trackID int32, gates []model.Gate) error
	// LoadByTrackID returns the gates ordered by their index.
	LoadByTrackID(ctx context.Context, trackID int32) ([]model.Gate, error)
	SoftDeleteByTrackID(ctx context.Context, trackID int32) (int, error)
}

type LapRepository interface {
	Create(ctx context.Context, lap *model.Lap) error
	LoadByTrackID(ctx context.Context, trackID int32) ([]*model.Lap, error)
	// BestTimes returns the best lap per participant, fastest first.
	BestTimes(ctx context.Context, trackID int32, limit int) ([]model.BestTime, error)
	BestTime(ctx context.Context, trackID int32, participant uuid.UUID) (
		*model.BestTime, error,
	)
}

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
