//nolint:whitespace // can't make both editor and linter happy
package gate

import (
	"context"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/gaterace-service-go/pkg/db/mytypes"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/context"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

type (
	repo struct {
		conn bob.Executor
	}
	gateRow struct {
		ID        int32            `db:"id"`
		TrackID   int32            `db:"track_id"`
		Idx       int32            `db:"idx"`
		OriginX   int32            `db:"origin_x"`
		OriginY   int32            `db:"origin_y"`
		OriginZ   int32            `db:"origin_z"`
		FarthestX int32            `db:"farthest_x"`
		FarthestY int32            `db:"farthest_y"`
		FarthestZ int32            `db:"farthest_z"`
		Data      mytypes.GateData `db:"data"`
	}
)

var _ api.GateRepository = (*repo)(nil)

func NewGateRepository(conn bob.Executor) api.GateRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Create(ctx context.Context, trackID int32, gates []model.Gate) error {
	for i := range gates {
		g := &gates[i]
		q := psql.RawQuery(`
INSERT INTO gate (track_id, idx, origin_x, origin_y, origin_z,
  farthest_x, farthest_y, farthest_z, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
			psql.Arg(trackID),
			psql.Arg(g.Index),
			psql.Arg(g.Origin.X),
			psql.Arg(g.Origin.Y),
			psql.Arg(g.Origin.Z),
			psql.Arg(g.Farthest.X),
			psql.Arg(g.Farthest.Y),
			psql.Arg(g.Farthest.Z),
			psql.Arg(mytypes.GateDataFromDef(g.Def)),
		)
		id, err := bob.One(ctx, r.getExecutor(ctx), q, scan.SingleColumnMapper[int32])
		if err != nil {
			return err
		}
		g.ID = id
		g.TrackID = trackID
	}
	return nil
}

func (r *repo) LoadByTrackID(ctx context.Context, trackID int32) (
	[]model.Gate, error,
) {
	q := psql.RawQuery(`
SELECT id, track_id, idx, origin_x, origin_y, origin_z,
  farthest_x, farthest_y, farthest_z, data
FROM gate
WHERE track_id = ? AND NOT deleted
ORDER BY idx`, psql.Arg(trackID))
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[gateRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]model.Gate, 0, len(rows))
	for i := range rows {
		def, err := rows[i].Data.ToDef()
		if err != nil {
			return nil, err
		}
		ret = append(ret, model.Gate{
			ID:      rows[i].ID,
			TrackID: rows[i].TrackID,
			Index:   int(rows[i].Idx),
			Def:     def,
			Origin: voxel.P(
				int(rows[i].OriginX), int(rows[i].OriginY), int(rows[i].OriginZ)),
			Farthest: voxel.P(
				int(rows[i].FarthestX), int(rows[i].FarthestY), int(rows[i].FarthestZ)),
		})
	}
	return ret, nil
}

func (r *repo) SoftDeleteByTrackID(ctx context.Context, trackID int32) (int, error) {
	q := psql.RawQuery(`
UPDATE gate SET deleted = true, updated_at = now()
WHERE track_id = ? AND NOT deleted
RETURNING id`, psql.Arg(trackID))
	ids, err := bob.All(ctx, r.getExecutor(ctx), q, scan.SingleColumnMapper[int32])
	return len(ids), err
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
