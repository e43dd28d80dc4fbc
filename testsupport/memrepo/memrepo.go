// Package memrepo provides in-memory repositories for tests that do not
// need a database.
package memrepo

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/segmentio/ksuid"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
)

var ErrUniqueViolation = errors.New("unique constraint violated")

// Repos implements api.Repositories and api.TransactionManager.
// Transactions are not isolated, RunInTx just calls fn.
type Repos struct {
	mu     sync.Mutex
	now    func() time.Time
	tracks []*model.Track
	gates  []model.Gate
	laps   []*model.Lap
	nextID int32
	// FailLapCreate makes Lap().Create return this error if set
	FailLapCreate error
}

var (
	_ api.Repositories       = (*Repos)(nil)
	_ api.TransactionManager = (*Repos)(nil)
	_ api.TrackRepository    = (*trackRepo)(nil)
	_ api.GateRepository     = (*gateRepo)(nil)
	_ api.LapRepository      = (*lapRepo)(nil)
)

func New() *Repos {
	return &Repos{now: time.Now}
}

type (
	trackRepo struct{ r *Repos }
	gateRepo  struct{ r *Repos }
	lapRepo   struct{ r *Repos }
)

func (r *Repos) Track() api.TrackRepository { return &trackRepo{r} }
func (r *Repos) Gate() api.GateRepository   { return &gateRepo{r} }
func (r *Repos) Lap() api.LapRepository     { return &lapRepo{r} }

func (r *Repos) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *Repos) id() int32 {
	r.nextID++
	return r.nextID
}

func (t *trackRepo) Create(ctx context.Context, track *model.Track) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, other := range t.r.tracks {
		if other.Deleted {
			continue
		}
		if other.Start == track.Start || other.Name == track.Name {
			return ErrUniqueViolation
		}
	}
	track.ID = t.r.id()
	track.CreatedAt = t.r.now()
	track.UpdatedAt = track.CreatedAt
	stored := *track
	t.r.tracks = append(t.r.tracks, &stored)
	return nil
}

func (t *trackRepo) find(pred func(*model.Track) bool) (*model.Track, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, track := range t.r.tracks {
		if !track.Deleted && pred(track) {
			ret := *track
			return &ret, nil
		}
	}
	return nil, api.ErrNoRows
}

func (t *trackRepo) LoadByID(ctx context.Context, id int32) (*model.Track, error) {
	return t.find(func(track *model.Track) bool { return track.ID == id })
}

//nolint:whitespace // can't make both editor and linter happy
func (t *trackRepo) LoadByStart(
	ctx context.Context,
	key model.StartKey,
) (*model.Track, error) {
	return t.find(func(track *model.Track) bool { return track.Start == key })
}

func (t *trackRepo) LoadByName(ctx context.Context, name string) (*model.Track, error) {
	return t.find(func(track *model.Track) bool { return track.Name == name })
}

func (t *trackRepo) LoadAll(ctx context.Context) ([]*model.Track, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	ret := []*model.Track{}
	for _, track := range t.r.tracks {
		if !track.Deleted {
			c := *track
			ret = append(ret, &c)
		}
	}
	return ret, nil
}

func (t *trackRepo) SoftDelete(ctx context.Context, id int32) (int, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, track := range t.r.tracks {
		if track.ID == id && !track.Deleted {
			track.Deleted = true
			track.UpdatedAt = t.r.now()
			return 1, nil
		}
	}
	return 0, nil
}

func (g *gateRepo) Create(ctx context.Context, trackID int32, gates []model.Gate) error {
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	for i := range gates {
		gates[i].ID = g.r.id()
		gates[i].TrackID = trackID
		g.r.gates = append(g.r.gates, gates[i])
	}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (g *gateRepo) LoadByTrackID(
	ctx context.Context,
	trackID int32,
) ([]model.Gate, error) {
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	ret := []model.Gate{}
	for _, gate := range g.r.gates {
		if gate.TrackID == trackID {
			ret = append(ret, gate)
		}
	}
	slices.SortFunc(ret, func(a, b model.Gate) int { return cmp.Compare(a.Index, b.Index) })
	return ret, nil
}

func (g *gateRepo) SoftDeleteByTrackID(ctx context.Context, trackID int32) (int, error) {
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	n := len(g.r.gates)
	g.r.gates = slices.DeleteFunc(g.r.gates, func(gate model.Gate) bool {
		return gate.TrackID == trackID
	})
	return n - len(g.r.gates), nil
}

func (l *lapRepo) Create(ctx context.Context, lap *model.Lap) error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if l.r.FailLapCreate != nil {
		return l.r.FailLapCreate
	}
	if lap.ID == "" {
		lap.ID = ksuid.New().String()
	}
	lap.CreatedAt = l.r.now()
	stored := *lap
	l.r.laps = append(l.r.laps, &stored)
	return nil
}

func (l *lapRepo) LoadByTrackID(ctx context.Context, trackID int32) ([]*model.Lap, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	ret := []*model.Lap{}
	for _, lap := range l.r.laps {
		if lap.TrackID == trackID {
			c := *lap
			ret = append(ret, &c)
		}
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (l *lapRepo) BestTimes(
	ctx context.Context,
	trackID int32,
	limit int,
) ([]model.BestTime, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	ret := l.best(trackID)
	if len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (l *lapRepo) BestTime(
	ctx context.Context,
	trackID int32,
	participant uuid.UUID,
) (*model.BestTime, error) {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	for _, b := range l.best(trackID) {
		if b.ParticipantID == participant {
			return &b, nil
		}
	}
	return nil, api.ErrNoRows
}

// best must be called with the lock held
func (l *lapRepo) best(trackID int32) []model.BestTime {
	for _, track := range l.r.tracks {
		if track.ID == trackID && track.Deleted {
			return []model.BestTime{}
		}
	}
	byParticipant := map[uuid.UUID]int64{}
	for _, lap := range l.r.laps {
		if lap.TrackID != trackID {
			continue
		}
		if v, ok := byParticipant[lap.ParticipantID]; !ok || lap.ElapsedMs < v {
			byParticipant[lap.ParticipantID] = lap.ElapsedMs
		}
	}
	ret := make([]model.BestTime, 0, len(byParticipant))
	for p, ms := range byParticipant {
		ret = append(ret, model.BestTime{ParticipantID: p, ElapsedMs: ms})
	}
	slices.SortFunc(ret, func(a, b model.BestTime) int {
		if c := cmp.Compare(a.ElapsedMs, b.ElapsedMs); c != 0 {
			return c
		}
		return cmp.Compare(a.ParticipantID.String(), b.ParticipantID.String())
	})
	return ret
}

// Laps returns a copy of all stored laps.
func (r *Repos) Laps() []model.Lap {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]model.Lap, len(r.laps))
	for i, lap := range r.laps {
		ret[i] = *lap
	}
	return ret
}
