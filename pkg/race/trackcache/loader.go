package trackcache

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

// LoadedTrack is a track together with its rebuilt gate geometry.
type LoadedTrack struct {
	Track *model.Track
	Gates []*gate.Record
	// generation of the key when the track was cached
	gen uint64
}

func (lt *LoadedTrack) Key() model.StartKey {
	return lt.Track.Start
}

// HasGateAt reports whether one of the gates has pos in its bounding box.
func (lt *LoadedTrack) HasGateAt(world string, pos voxel.Pos) bool {
	for _, g := range lt.Gates {
		if g.World == world && g.Contains(pos) {
			return true
		}
	}
	return false
}

type Loader interface {
	Load(ctx context.Context, key model.StartKey) (*LoadedTrack, error)
}

type LoaderFunc func(ctx context.Context, key model.StartKey) (*LoadedTrack, error)

func (f LoaderFunc) Load(ctx context.Context, key model.StartKey) (*LoadedTrack, error) {
	return f(ctx, key)
}

// RepoLoader reads track and gate definitions from the repositories and
// rebuilds the gate geometry against the oracle.
type RepoLoader struct {
	tracks   api.TrackRepository
	gates    api.GateRepository
	oracle   voxel.Oracle
	gateOpts []gate.Option
	parallel int
}

var _ Loader = (*RepoLoader)(nil)

//nolint:whitespace // can't make both editor and linter happy
func NewRepoLoader(
	repos api.Repositories,
	oracle voxel.Oracle,
	gateOpts ...gate.Option,
) *RepoLoader {
	return &RepoLoader{
		tracks:   repos.Track(),
		gates:    repos.Gate(),
		oracle:   oracle,
		gateOpts: gateOpts,
		parallel: runtime.GOMAXPROCS(0),
	}
}

func (l *RepoLoader) Load(ctx context.Context, key model.StartKey) (*LoadedTrack, error) {
	track, err := l.tracks.LoadByStart(ctx, key)
	if errors.Is(err, api.ErrNoRows) {
		return nil, race.NewSessionError(race.ErrTrackNotFound,
			"There is no track starting at "+key.Pos.String()+".")
	}
	if err != nil {
		return nil, err
	}
	defs, err := l.gates.LoadByTrackID(ctx, track.ID)
	if err != nil {
		return nil, err
	}
	recs, err := BuildGates(defs, l.oracle, l.parallel, l.gateOpts...)
	if err != nil {
		return nil, err
	}
	return &LoadedTrack{Track: track, Gates: recs}, nil
}

// BuildGates rebuilds all gates in parallel. If gates fail, the error names
// the anchor of the first broken gate.
//
//nolint:whitespace // can't make both editor and linter happy
func BuildGates(
	defs []model.Gate,
	oracle voxel.Oracle,
	parallel int,
	opts ...gate.Option,
) ([]*gate.Record, error) {
	recs := make([]*gate.Record, len(defs))
	errs := make([]error, len(defs))
	g := errgroup.Group{}
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i := range defs {
		g.Go(func() error {
			recs[i], errs[i] = gate.Build(defs[i].Def, oracle, opts...)
			return errs[i]
		})
	}
	if g.Wait() == nil {
		return recs, nil
	}
	for i, err := range errs {
		if err != nil {
			return nil, race.NewSessionError(
				fmt.Errorf("gate %d: %w: %w", i, race.ErrBrokenGates, err),
				fmt.Sprintf("The track has broken gates. %s\nCheck near %s.",
					gate.UserReason(err), defs[i].Def.A))
		}
	}
	return nil, race.ErrBrokenGates
}
