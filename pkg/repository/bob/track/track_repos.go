//nolint:whitespace // can't make both editor and linter happy
package track

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/context"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

type (
	repo struct {
		conn bob.Executor
	}
	trackRow struct {
		ID        int32     `db:"id"`
		OwnerID   uuid.UUID `db:"owner_id"`
		Name      string    `db:"name"`
		World     string    `db:"world"`
		X         int32     `db:"x"`
		Y         int32     `db:"y"`
		Z         int32     `db:"z"`
		Deleted   bool      `db:"deleted"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

const selectTrack = `SELECT id, owner_id, name, world, x, y, z, deleted, created_at, updated_at
FROM track `

var _ api.TrackRepository = (*repo)(nil)

func NewTrackRepository(conn bob.Executor) api.TrackRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Create(ctx context.Context, track *model.Track) error {
	q := psql.RawQuery(`
INSERT INTO track (owner_id, name, world, x, y, z)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, owner_id, name, world, x, y, z, deleted, created_at, updated_at`,
		psql.Arg(track.OwnerID),
		psql.Arg(track.Name),
		psql.Arg(track.Start.World),
		psql.Arg(track.Start.Pos.X),
		psql.Arg(track.Start.Pos.Y),
		psql.Arg(track.Start.Pos.Z),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[trackRow]())
	if err != nil {
		return err
	}
	*track = *toModel(&row)
	return nil
}

func (r *repo) LoadByID(ctx context.Context, id int32) (*model.Track, error) {
	return r.loadOne(ctx, psql.RawQuery(selectTrack+`WHERE id = ? AND NOT deleted`,
		psql.Arg(id)))
}

func (r *repo) LoadByStart(ctx context.Context, key model.StartKey) (
	*model.Track, error,
) {
	return r.loadOne(ctx, psql.RawQuery(
		selectTrack+`WHERE world = ? AND x = ? AND y = ? AND z = ? AND NOT deleted`,
		psql.Arg(key.World),
		psql.Arg(key.Pos.X),
		psql.Arg(key.Pos.Y),
		psql.Arg(key.Pos.Z),
	))
}

func (r *repo) LoadByName(ctx context.Context, name string) (*model.Track, error) {
	return r.loadOne(ctx, psql.RawQuery(selectTrack+`WHERE name = ? AND NOT deleted`,
		psql.Arg(name)))
}

func (r *repo) LoadAll(ctx context.Context) ([]*model.Track, error) {
	q := psql.RawQuery(selectTrack + `WHERE NOT deleted ORDER BY id`)
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[trackRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Track, len(rows))
	for i := range rows {
		ret[i] = toModel(&rows[i])
	}
	return ret, nil
}

// SoftDelete returns the number of tracks marked as deleted.
func (r *repo) SoftDelete(ctx context.Context, id int32) (int, error) {
	q := psql.RawQuery(`
UPDATE track SET deleted = true, updated_at = now()
WHERE id = ? AND NOT deleted
RETURNING id`, psql.Arg(id))
	ids, err := bob.All(ctx, r.getExecutor(ctx), q, scan.SingleColumnMapper[int32])
	return len(ids), err
}

func (r *repo) loadOne(ctx context.Context, q bob.Query) (*model.Track, error) {
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[trackRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return toModel(&row), nil
}

func toModel(row *trackRow) *model.Track {
	return &model.Track{
		ID:      row.ID,
		OwnerID: row.OwnerID,
		Name:    row.Name,
		Start: model.StartKey{
			World: row.World,
			Pos:   voxel.P(int(row.X), int(row.Y), int(row.Z)),
		},
		Deleted:   row.Deleted,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
