// Package leaderboard records laps and keeps track of the best times per
// track.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils/cache"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils/cache/loadercache"
)

const DefaultLimit = 10

// Mirror receives the best times of a track whenever they change.
type Mirror interface {
	PutBestTimes(ctx context.Context, trackID int32, times []model.BestTime) error
	DeleteBestTimes(ctx context.Context, trackID int32) error
}

// Standings are the best times of a track, fastest first.
type Standings struct {
	TrackID int32
	Times   []model.BestTime
}

func (s *Standings) Leader() *model.BestTime {
	if s == nil || len(s.Times) == 0 {
		return nil
	}
	return &s.Times[0]
}

type Option func(*Board)

func WithLimit(limit int) Option {
	return func(b *Board) {
		if limit > 0 {
			b.limit = limit
		}
	}
}

func WithSink(sink event.Sink) Option {
	return func(b *Board) {
		b.sink = sink
	}
}

func WithNames(names race.NameResolver) Option {
	return func(b *Board) {
		b.names = names
	}
}

func WithMirror(m Mirror) Option {
	return func(b *Board) {
		b.mirror = m
	}
}

func WithCacheExpiration(d time.Duration) Option {
	return func(b *Board) {
		b.expiration = d
	}
}

type Board struct {
	laps       api.LapRepository
	limit      int
	sink       event.Sink
	names      race.NameResolver
	mirror     Mirror
	expiration time.Duration
	standings  cache.Cache[int32, Standings]
	log        *log.Logger
	tracer     trace.Tracer
}

func New(laps api.LapRepository, opts ...Option) *Board {
	ret := &Board{
		laps:       laps,
		limit:      DefaultLimit,
		sink:       event.Discard,
		names:      race.NewNames(),
		expiration: 5 * time.Minute,
		log:        log.Default().Named("race.leaderboard"),
		tracer:     otel.Tracer("grs"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.standings = loadercache.New(
		loadercache.WithLoader[int32, Standings](ret.load),
		loadercache.WithExpiration[int32, Standings](ret.expiration),
		loadercache.WithLogger[int32, Standings](ret.log.Named("cache")),
	)
	return ret
}

func (b *Board) load(ctx context.Context, trackID int32) (*Standings, error) {
	times, err := b.laps.BestTimes(ctx, trackID, b.limit)
	if err != nil {
		return nil, err
	}
	return &Standings{TrackID: trackID, Times: times}, nil
}

// BestTimes returns the top times of the track.
func (b *Board) BestTimes(ctx context.Context, trackID int32) ([]model.BestTime, error) {
	s, err := b.standings.Get(ctx, trackID)
	if err != nil {
		return nil, err
	}
	return s.Times, nil
}

// Record stores lap. Afterwards the best time of the participant is sent to
// everyone and a change of the leader is announced.
func (b *Board) Record(ctx context.Context, track *model.Track, lap *model.Lap) error {
	ctx, span := b.tracer.Start(ctx, "leaderboard.record",
		trace.WithAttributes(attribute.Int("track", int(track.ID))))
	defer span.End()

	lap.TrackID = track.ID
	prev, err := b.standings.Get(ctx, track.ID)
	if err != nil {
		return err
	}
	if err := b.laps.Create(ctx, lap); err != nil {
		return fmt.Errorf("insert lap: %w", err)
	}
	b.standings.Invalidate(ctx, track.ID)
	next, err := b.standings.Get(ctx, track.ID)
	if err != nil {
		return err
	}
	best, err := b.laps.BestTime(ctx, track.ID, lap.ParticipantID)
	if err != nil {
		return err
	}
	b.sink.Emit(event.Event{
		Kind:        event.KindBestTime,
		Scope:       event.ScopeAll,
		Participant: lap.ParticipantID,
		TrackID:     track.ID,
		ElapsedMs:   best.ElapsedMs,
	})

	if msg := b.leaderChange(prev.Leader(), next.Leader()); msg != "" {
		e := event.Notify(event.KindNewLeader, track.ID, msg)
		e.TrackName = track.Name
		e.Participant = next.Leader().ParticipantID
		e.ElapsedMs = next.Leader().ElapsedMs
		b.sink.Emit(e)
	}

	if b.mirror != nil {
		if err := b.mirror.PutBestTimes(ctx, track.ID, next.Times); err != nil {
			b.log.Warn("could not mirror best times",
				log.Int32("track", track.ID), log.ErrorField(err))
		}
	}
	return nil
}

func (b *Board) leaderChange(prev, next *model.BestTime) string {
	switch {
	case next == nil:
		return ""
	case prev == nil:
		return fmt.Sprintf(":first_place: %s took the lead!",
			b.names.Name(next.ParticipantID))
	case prev.ParticipantID != next.ParticipantID:
		return fmt.Sprintf(":first_place: %s took the lead from %s!",
			b.names.Name(next.ParticipantID), b.names.Name(prev.ParticipantID))
	default:
		return ""
	}
}

// Forget drops the cached and mirrored standings of a removed track.
func (b *Board) Forget(ctx context.Context, trackID int32) {
	b.standings.Invalidate(ctx, trackID)
	if b.mirror != nil {
		if err := b.mirror.DeleteBestTimes(ctx, trackID); err != nil {
			b.log.Warn("could not remove mirrored best times",
				log.Int32("track", trackID), log.ErrorField(err))
		}
	}
}
