//nolint:funlen // ok for this test code
package track

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/testdb"
)

func setup(t *testing.T) (*model.Track, api.TrackRepository) {
	t.Helper()
	pool := testdb.InitTestDB()
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	r := NewTrackRepository(db)
	track := basedata.SampleTrack()
	assert.NilError(t, r.Create(context.Background(), track))
	return track, r
}

func TestCreate(t *testing.T) {
	track, r := setup(t)
	ctx := context.Background()

	assert.Assert(t, track.ID > 0)
	assert.Assert(t, !track.CreatedAt.IsZero())
	assert.Equal(t, track.CreatedAt, track.UpdatedAt)

	tests := []struct {
		name    string
		track   *model.Track
		wantErr bool
	}{
		{
			name: "other start and name",
			track: &model.Track{
				OwnerID: basedata.SampleOwner,
				Name:    "other",
				Start:   model.StartKey{World: basedata.World, Pos: voxel.P(1, 1, 1)},
			},
		},
		{
			name: "same start",
			track: &model.Track{
				OwnerID: basedata.SampleOwner,
				Name:    "another",
				Start:   basedata.SimpleTrackStart,
			},
			wantErr: true,
		},
		{
			name: "same name",
			track: &model.Track{
				OwnerID: basedata.SampleOwner,
				Name:    track.Name,
				Start:   model.StartKey{World: basedata.World, Pos: voxel.P(2, 2, 2)},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Create(ctx, tt.track)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	track, r := setup(t)
	ctx := context.Background()

	byID, err := r.LoadByID(ctx, track.ID)
	assert.NilError(t, err)
	assert.DeepEqual(t, byID.Start, basedata.SimpleTrackStart)
	assert.Equal(t, byID.OwnerID, basedata.SampleOwner)

	byStart, err := r.LoadByStart(ctx, basedata.SimpleTrackStart)
	assert.NilError(t, err)
	assert.Equal(t, byStart.ID, track.ID)

	byName, err := r.LoadByName(ctx, track.Name)
	assert.NilError(t, err)
	assert.Equal(t, byName.ID, track.ID)

	_, err = r.LoadByStart(ctx, model.StartKey{World: "nether", Pos: voxel.P(0, 0, 0)})
	assert.Assert(t, errors.Is(err, api.ErrNoRows))

	all, err := r.LoadAll(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(all), 1)
}

func TestSoftDelete(t *testing.T) {
	track, r := setup(t)
	ctx := context.Background()

	n, err := r.SoftDelete(ctx, track.ID)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)

	n, err = r.SoftDelete(ctx, track.ID)
	assert.NilError(t, err)
	assert.Equal(t, n, 0)

	_, err = r.LoadByStart(ctx, basedata.SimpleTrackStart)
	assert.Assert(t, errors.Is(err, api.ErrNoRows))

	// start and name are free again
	again := basedata.SampleTrack()
	assert.NilError(t, r.Create(ctx, again))
	assert.Assert(t, again.ID != track.ID)
}
