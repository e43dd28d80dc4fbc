//nolint:whitespace // can't make both editor and linter happy
package lap

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/segmentio/ksuid"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob/context"
)

type (
	repo struct {
		conn bob.Executor
	}
	lapRow struct {
		ID            string    `db:"id"`
		TrackID       int32     `db:"track_id"`
		ParticipantID uuid.UUID `db:"participant_id"`
		ElapsedMs     int64     `db:"elapsed_ms"`
		CreatedAt     time.Time `db:"created_at"`
	}
	bestRow struct {
		ParticipantID uuid.UUID `db:"participant_id"`
		ElapsedMs     int64     `db:"elapsed_ms"`
	}
)

var _ api.LapRepository = (*repo)(nil)

func NewLapRepository(conn bob.Executor) api.LapRepository {
	return &repo{
		conn: conn,
	}
}

// Create stores lap. A ksuid is generated if the lap has no id yet.
func (r *repo) Create(ctx context.Context, lap *model.Lap) error {
	if lap.ID == "" {
		lap.ID = ksuid.New().String()
	}
	q := psql.RawQuery(`
INSERT INTO lap (id, track_id, participant_id, elapsed_ms)
VALUES (?, ?, ?, ?)
RETURNING created_at`,
		psql.Arg(lap.ID),
		psql.Arg(lap.TrackID),
		psql.Arg(lap.ParticipantID),
		psql.Arg(lap.ElapsedMs),
	)
	created, err := bob.One(ctx, r.getExecutor(ctx), q,
		scan.SingleColumnMapper[time.Time])
	if err != nil {
		return err
	}
	lap.CreatedAt = created
	return nil
}

func (r *repo) LoadByTrackID(ctx context.Context, trackID int32) (
	[]*model.Lap, error,
) {
	q := psql.RawQuery(`
SELECT id, track_id, participant_id, elapsed_ms, created_at
FROM lap
WHERE track_id = ?
ORDER BY id`, psql.Arg(trackID))
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[lapRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Lap, len(rows))
	for i := range rows {
		ret[i] = &model.Lap{
			ID:            rows[i].ID,
			TrackID:       rows[i].TrackID,
			ParticipantID: rows[i].ParticipantID,
			ElapsedMs:     rows[i].ElapsedMs,
			CreatedAt:     rows[i].CreatedAt,
		}
	}
	return ret, nil
}

// BestTimes ignores laps of soft deleted tracks.
func (r *repo) BestTimes(ctx context.Context, trackID int32, limit int) (
	[]model.BestTime, error,
) {
	q := psql.RawQuery(`
SELECT l.participant_id, min(l.elapsed_ms) AS elapsed_ms
FROM lap l
  JOIN track t ON t.id = l.track_id
WHERE l.track_id = ? AND NOT t.deleted
GROUP BY l.participant_id
ORDER BY elapsed_ms, l.participant_id
LIMIT ?`, psql.Arg(trackID), psql.Arg(limit))
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[bestRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]model.BestTime, len(rows))
	for i := range rows {
		ret[i] = model.BestTime(rows[i])
	}
	return ret, nil
}

func (r *repo) BestTime(
	ctx context.Context,
	trackID int32,
	participant uuid.UUID,
) (*model.BestTime, error) {
	q := psql.RawQuery(`
SELECT l.participant_id, min(l.elapsed_ms) AS elapsed_ms
FROM lap l
  JOIN track t ON t.id = l.track_id
WHERE l.track_id = ? AND l.participant_id = ? AND NOT t.deleted
GROUP BY l.participant_id`, psql.Arg(trackID), psql.Arg(participant))
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[bestRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	ret := model.BestTime(row)
	return &ret, nil
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
