package gate

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	bobCtx "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/context"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/track"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/testdb"
)

func TestCreateAndLoad(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	trackRepo, gateRepo := track.NewTrackRepository(db), NewGateRepository(db)
	ctx := context.Background()

	sample := basedata.SampleTrack()
	gates := basedata.SampleGates()
	err := runInTx(ctx, db, func(ctx context.Context) error {
		if err := trackRepo.Create(ctx, sample); err != nil {
			return err
		}
		return gateRepo.Create(ctx, sample.ID, gates)
	})
	assert.NilError(t, err)

	loaded, err := gateRepo.LoadByTrackID(ctx, sample.ID)
	assert.NilError(t, err)
	assert.Equal(t, len(loaded), 2)
	for i := range loaded {
		assert.Equal(t, loaded[i].Index, i)
		assert.Equal(t, loaded[i].TrackID, sample.ID)
		assert.Equal(t, loaded[i].ID, gates[i].ID)
		assert.DeepEqual(t, loaded[i].Def, gates[i].Def)
		assert.Equal(t, loaded[i].Origin, gates[i].Origin)
		assert.Equal(t, loaded[i].Farthest, gates[i].Farthest)
	}

	n, err := gateRepo.SoftDeleteByTrackID(ctx, sample.ID)
	assert.NilError(t, err)
	assert.Equal(t, n, 2)
	loaded, err = gateRepo.LoadByTrackID(ctx, sample.ID)
	assert.NilError(t, err)
	assert.Equal(t, len(loaded), 0)
}

func TestRollback(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	trackRepo, gateRepo := track.NewTrackRepository(db), NewGateRepository(db)
	ctx := context.Background()

	sample := basedata.SampleTrack()
	gates := basedata.SampleGates()
	err := runInTx(ctx, db, func(ctx context.Context) error {
		if err := trackRepo.Create(ctx, sample); err != nil {
			return err
		}
		if err := gateRepo.Create(ctx, sample.ID, gates); err != nil {
			return err
		}
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)

	all, err := trackRepo.LoadAll(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(all), 0)
}

func runInTx(ctx context.Context, db bob.DB, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, e bob.Executor) error {
		return fn(bobCtx.NewContext(ctx, e))
	})
}
