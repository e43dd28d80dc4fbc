//nolint:funlen // ok for this test code
package build

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/session"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/trackcache"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/memrepo"
)

var (
	owner  = basedata.SampleOwner
	racer  = basedata.SampleParticipant
	start  = basedata.SimpleTrackStart
	world  = basedata.World
	gate0A = basedata.SimpleTrackGate0.A
	gate1A = basedata.SimpleTrackGate1.A
	gate1B = basedata.SimpleTrackGate1.B
)

type fixture struct {
	repos *memrepo.Repos
	rec   *event.Recorder
	names *race.Names
	b     *Builder
}

func setup(oracle voxel.Oracle, opts ...Option) *fixture {
	f := &fixture{repos: memrepo.New(), rec: &event.Recorder{}, names: race.NewNames()}
	f.names.Set(owner, "Steve")
	f.names.Set(racer, "Alex")
	opts = append([]Option{
		WithSink(f.rec), WithNames(f.names), WithTxManager(f.repos),
	}, opts...)
	f.b = New(f.repos, oracle, opts...)
	return f
}

func (f *fixture) lastMessage(p uuid.UUID) string {
	msgs := f.rec.Messages(p)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// markSimpleTrack marks both gates of the simple track
func (f *fixture) markSimpleTrack(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.b.AddBlock(ctx, owner, world, gate0A, voxel.Up))
	err := f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
	require.ErrorIs(t, err, race.ErrAmbiguousGate)
	require.NoError(t, f.b.AddBlock(ctx, owner, world, gate1B, voxel.Up))
	require.Equal(t, 2, f.b.GateCount(owner))
}

func TestBuildAndRemove(t *testing.T) {
	f := setup(basedata.SimpleTrackWorld())
	ctx := context.Background()

	assert.True(t, f.b.Start(owner, start))
	assert.False(t, f.b.Start(owner, start))
	key, building := f.b.Building(owner)
	assert.True(t, building)
	assert.Equal(t, start, key)

	require.NoError(t, f.b.AddBlock(ctx, owner, world, gate0A, voxel.Up))
	assert.Equal(t, "Gate successfully added.", f.lastMessage(owner))

	err := f.b.AddBlock(ctx, owner, world, start.Pos, voxel.Up)
	assert.ErrorIs(t, err, race.ErrTooFewGates)
	assert.Equal(t, "The track must contain at least 2 gates.", f.lastMessage(owner))

	err = f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
	assert.ErrorIs(t, err, race.ErrAmbiguousGate)
	assert.Equal(t, "Two possible gates were found. "+
		"Choose another block to specify which one you want to add.", f.lastMessage(owner))
	require.NoError(t, f.b.AddBlock(ctx, owner, world, gate1B, voxel.Up))
	assert.Len(t, f.rec.Kind(event.KindGatePreview), 2)

	err = f.b.AddBlock(ctx, owner, world, start.Pos, voxel.Up)
	assert.ErrorIs(t, err, race.ErrUnnamed)
	assert.Equal(t, "The track is unnamed. Set it using /race setName <name>.",
		f.lastMessage(owner))

	require.NoError(t, f.b.SetName(ctx, owner, "simple_track"))
	require.NoError(t, f.b.AddBlock(ctx, owner, world, start.Pos, voxel.Up))
	msgs := f.rec.Messages(owner)
	assert.Equal(t, []string{
		"You are no longer building a track.",
		"Track 'simple_track' successfully built!",
	}, msgs[len(msgs)-2:])
	assert.Equal(t, []string{":checkered_flag: Steve built a track!"}, f.rec.Notifications())
	_, building = f.b.Building(owner)
	assert.False(t, building)

	track, err := f.repos.Track().LoadByStart(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, owner, track.OwnerID)
	gates, err := f.repos.Gate().LoadByTrackID(ctx, track.ID)
	require.NoError(t, err)
	require.Len(t, gates, 2)
	want := basedata.SampleGates()
	for i := range gates {
		assert.Equal(t, want[i].Def, gates[i].Def)
		assert.Equal(t, want[i].Origin, gates[i].Origin)
		assert.Equal(t, want[i].Farthest, gates[i].Farthest)
	}

	// race the new track, then remove it
	cache := trackcache.New(trackcache.NewRepoLoader(f.repos, basedata.SimpleTrackWorld()))
	m := session.New(cache, session.WithSink(f.rec), session.WithNames(f.names))
	defer m.Close()
	for _, p := range []uuid.UUID{owner, racer} {
		require.NoError(t, <-m.Enter(ctx, p, start, mgl64.Vec3{0, 1, 0}))
	}
	f.b.racing = m
	f.rec.Reset()

	require.NoError(t, f.b.RemoveTrack(ctx, owner, start))
	assert.Equal(t, []string{
		"You left racing mode.",
		"Your track 'simple_track' was removed.",
	}, f.rec.Messages(owner))
	assert.Equal(t, []string{
		"You were kicked out of racing mode because: " +
			"The track starting point was removed by Steve",
	}, f.rec.Messages(racer))
	assert.Equal(t, []string{
		":x: Steve deleted the track `simple_track`!\nLocation: (0, 0, 0)",
	}, f.rec.Notifications())
	assert.Equal(t, 0, m.Racers())
	assert.Equal(t, 0, cache.Stats().Tracks)

	_, err = f.repos.Track().LoadByStart(ctx, start)
	assert.ErrorIs(t, err, api.ErrNoRows)
	f.rec.Reset()
	require.NoError(t, f.b.RemoveTrack(ctx, owner, start))
	assert.Empty(t, f.rec.Events())
}

func TestAddBlockRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not building", func(t *testing.T) {
		f := setup(basedata.SimpleTrackWorld())
		err := f.b.AddBlock(ctx, owner, world, gate0A, voxel.Up)
		assert.ErrorIs(t, err, race.ErrNotBuilding)
	})
	t.Run("not solid", func(t *testing.T) {
		f := setup(basedata.SimpleTrackWorld())
		f.b.Start(owner, start)
		err := f.b.AddBlock(ctx, owner, world, voxel.P(2, 2, 1), voxel.Up)
		assert.ErrorIs(t, err, race.ErrNotSolid)
		assert.Equal(t, "Gate block must be solid.", f.lastMessage(owner))
	})
	t.Run("other world", func(t *testing.T) {
		f := setup(basedata.SimpleTrackWorld())
		f.b.Start(owner, start)
		err := f.b.AddBlock(ctx, owner, "nether", gate0A, voxel.Up)
		assert.ErrorIs(t, err, race.ErrNotSolid)
	})
	t.Run("no neighbors", func(t *testing.T) {
		f := setup(voxel.WorldFromLayers(world, "x"))
		f.b.Start(owner, model.StartKey{World: world, Pos: voxel.P(9, 9, 9)})
		err := f.b.AddBlock(ctx, owner, world, voxel.P(0, 0, 0), voxel.Up)
		assert.ErrorIs(t, err, race.ErrNoGate)
		assert.Equal(t, "Either you selected the wrong face, or this is not a gate.",
			f.lastMessage(owner))
	})
	t.Run("max gates", func(t *testing.T) {
		f := setup(basedata.SimpleTrackWorld(), WithMaxGates(1))
		f.b.Start(owner, start)
		require.NoError(t, f.b.AddBlock(ctx, owner, world, gate0A, voxel.Up))
		err := f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
		assert.ErrorIs(t, err, race.ErrMaxGates)
		assert.Equal(t, "The max number of gates has been reached (1).", f.lastMessage(owner))
	})
	t.Run("unresolved choice", func(t *testing.T) {
		f := setup(basedata.SimpleTrackWorld())
		f.b.Start(owner, start)
		err := f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
		require.ErrorIs(t, err, race.ErrAmbiguousGate)
		// the clicked block is part of both candidates
		err = f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
		assert.ErrorIs(t, err, race.ErrUnresolved)
		assert.Equal(t, "The block you chose does not specify which gate you want to add.",
			f.lastMessage(owner))
		assert.Equal(t, 0, f.b.GateCount(owner))
		// choices are cleared, the next click starts over
		err = f.b.AddBlock(ctx, owner, world, gate1A, voxel.Up)
		assert.ErrorIs(t, err, race.ErrAmbiguousGate)
	})
}

func TestSetName(t *testing.T) {
	ctx := context.Background()
	f := setup(basedata.SimpleTrackWorld())
	existing := basedata.SampleTrack()
	existing.Start = model.StartKey{World: world, Pos: voxel.P(5, 5, 5)}
	require.NoError(t, f.repos.Track().Create(ctx, existing))

	tests := []struct {
		name    string
		arg     string
		wantErr error
	}{
		{"blank", "", race.ErrBlankName},
		{"space", "my track", race.ErrInvalidName},
		{"backslash", `my\track`, race.ErrInvalidName},
		{"umlaut", "strecke_ä", race.ErrInvalidName},
		{"taken", existing.Name, race.ErrNameTaken},
		{"not building", "fresh", race.ErrNotBuilding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.b.SetName(ctx, owner, tt.arg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	f.b.Start(owner, start)
	assert.NoError(t, f.b.SetName(ctx, owner, "fresh"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "abc!~", SanitizeName("a b\tc!~"))
	assert.Equal(t, "ab", SanitizeName(`a\b`))
	assert.Equal(t, "", SanitizeName("äöü"))
}

func TestCompleteTrackExists(t *testing.T) {
	ctx := context.Background()
	f := setup(basedata.SimpleTrackWorld())
	f.b.Start(owner, start)
	f.markSimpleTrack(t)
	require.NoError(t, f.b.SetName(ctx, owner, "second"))

	other := basedata.SampleTrack()
	require.NoError(t, f.repos.Track().Create(ctx, other))

	err := f.b.Complete(ctx, owner)
	assert.ErrorIs(t, err, race.ErrTrackExists)
	assert.Equal(t, "A track already exists at this position. [0, 0, 0]", f.lastMessage(owner))
	_, building := f.b.Building(owner)
	assert.False(t, building)

	all, err := f.repos.Track().LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
