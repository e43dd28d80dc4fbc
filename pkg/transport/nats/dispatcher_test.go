//nolint:funlen // ok for this test code
package nats

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/build"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/leaderboard"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/session"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/trackcache"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/memrepo"
)

type fixture struct {
	repos *memrepo.Repos
	world *voxel.World
	rec   *event.Recorder
	names *race.Names
	m     *session.Machine
	d     *Dispatcher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repos: memrepo.New(),
		world: basedata.SimpleTrackWorld(),
		rec:   &event.Recorder{},
		names: race.NewNames(),
	}
	track := basedata.SampleTrack()
	require.NoError(t, f.repos.Track().Create(ctx, track))
	require.NoError(t, f.repos.Gate().Create(ctx, track.ID, basedata.SampleGates()))

	cache := trackcache.New(trackcache.NewRepoLoader(f.repos, f.world))
	board := leaderboard.New(f.repos.Lap(),
		leaderboard.WithSink(f.rec), leaderboard.WithNames(f.names))
	f.m = session.New(cache,
		session.WithSink(f.rec), session.WithNames(f.names), session.WithLapRecorder(board))
	t.Cleanup(f.m.Close)
	b := build.New(f.repos, f.world,
		build.WithSink(f.rec), build.WithNames(f.names), build.WithRacing(f.m),
		build.WithForgetter(board), build.WithTxManager(f.repos))
	f.d = NewDispatcher(f.m, b, f.world, f.names)
	return f
}

func xyz(x, y, z float64) map[string]any {
	return map[string]any{"x": x, "y": y, "z": z}
}

func (f *fixture) call(t *testing.T, op string, p uuid.UUID, args map[string]any) Reply {
	t.Helper()
	payload := map[string]any{"clientVersion": "0.1.0", "world": basedata.World}
	if p != uuid.Nil {
		payload["participant"] = p.String()
	}
	for k, v := range args {
		payload[k] = v
	}
	data, err := oj.Marshal(payload)
	require.NoError(t, err)
	return f.d.Handle(context.Background(), op, data)
}

var startArg = xyz(0, 0, 0)

func TestRaceCommands(t *testing.T) {
	f := setup(t)
	p := basedata.SampleParticipant

	reply := f.call(t, OpName, p, map[string]any{"name": "Alex"})
	assert.Equal(t, true, reply["ok"])
	assert.Equal(t, "Alex", f.names.Name(p))

	reply = f.call(t, OpEnter, p, map[string]any{"start": startArg, "pos": xyz(0, 1, 0)})
	require.Equal(t, true, reply["ok"], reply)
	assert.Equal(t, true, reply["racing"])

	reply = f.call(t, OpSample, p, map[string]any{"pos": xyz(1, 2, 0)})
	assert.Equal(t, 0, reply["nextGate"])
	reply = f.call(t, OpSample, p, map[string]any{"pos": xyz(1, 2, 1.5)})
	assert.Equal(t, 1, reply["nextGate"])

	reply = f.call(t, OpStatus, p, nil)
	assert.Equal(t, true, reply["racing"])
	assert.Equal(t, 1, reply["nextGate"])
	assert.Equal(t, 2, reply["gateCount"])
	assert.Contains(t, reply, "lapStart")

	// unchanged blocks don't kick anyone
	reply = f.call(t, OpBlockChange, uuid.Nil, map[string]any{
		"pos": xyz(1, 1, 1), "solid": true,
	})
	assert.Equal(t, false, reply["changed"])

	reply = f.call(t, OpBlockChange, uuid.Nil, map[string]any{
		"pos": xyz(1, 1, 1), "solid": false, "changedBy": "Steve",
	})
	assert.Equal(t, true, reply["changed"])
	assert.Equal(t, 1, reply["kicked"])
	msgs := f.rec.Messages(p)
	assert.Equal(t,
		"You were kicked out of racing mode because: A gate was changed by Steve",
		msgs[len(msgs)-1])

	reply = f.call(t, OpStatus, p, nil)
	assert.Equal(t, false, reply["racing"])
	reply = f.call(t, OpSample, p, map[string]any{"pos": xyz(1, 2, 0)})
	assert.Equal(t, false, reply["racing"])

	// the gate is broken now
	reply = f.call(t, OpToggle, p, map[string]any{"start": startArg, "pos": xyz(0, 1, 0)})
	assert.Equal(t, false, reply["ok"])
	assert.Contains(t, reply["error"], "The track has broken gates.")
}

func TestEnterUnknownTrack(t *testing.T) {
	f := setup(t)
	reply := f.call(t, OpEnter, basedata.SampleParticipant,
		map[string]any{"start": xyz(7, 7, 7), "pos": xyz(7, 8, 7)})
	assert.Equal(t, Reply{
		"ok": false, "error": "There is no track starting at [7, 7, 7].",
	}, reply)
}

func TestBuildCommands(t *testing.T) {
	f := setup(t)
	owner := basedata.SampleOwner

	reply := f.call(t, OpTrackRemove, owner, map[string]any{"start": startArg})
	require.Equal(t, true, reply["ok"], reply)
	assert.Equal(t, []string{
		":x: " + owner.String() + " deleted the track `simple_track`!\nLocation: (0, 0, 0)",
	}, f.rec.Notifications())

	reply = f.call(t, OpBuildStart, owner, map[string]any{"start": startArg, "name": "Steve"})
	assert.Equal(t, true, reply["started"])

	block := func(x, y, z float64) Reply {
		return f.call(t, OpBuildBlock, owner, map[string]any{"pos": xyz(x, y, z), "face": "up"})
	}
	reply = block(1, 1, 1)
	assert.Equal(t, true, reply["ok"])
	assert.Equal(t, 1, reply["gates"])
	reply = block(1, 0, 3)
	assert.Equal(t, false, reply["ok"])
	assert.Equal(t, "Two possible gates were found. "+
		"Choose another block to specify which one you want to add.", reply["error"])
	reply = block(2, 0, 3)
	assert.Equal(t, 2, reply["gates"])

	reply = f.call(t, OpBuildName, owner, map[string]any{"trackName": "has space"})
	assert.Equal(t, false, reply["ok"])
	reply = f.call(t, OpBuildName, owner, map[string]any{"trackName": "rebuilt"})
	assert.Equal(t, true, reply["ok"])

	reply = block(0, 0, 0)
	assert.Equal(t, true, reply["ok"])
	track, err := f.repos.Track().LoadByName(context.Background(), "rebuilt")
	require.NoError(t, err)
	assert.Equal(t, basedata.SimpleTrackStart, track.Start)
	assert.Contains(t, f.rec.Notifications(), ":checkered_flag: Steve built a track!")

	reply = f.call(t, OpLeave, owner, nil)
	assert.Equal(t, true, reply["ok"])
	assert.Equal(t, owner.String(), f.names.Name(owner))
}

func TestWorldCommands(t *testing.T) {
	f := setup(t)
	before := f.world.Count("nether")
	reply := f.call(t, OpWorldLoad, uuid.Nil, map[string]any{
		"world":  "nether",
		"blocks": []any{xyz(0, 0, 0), xyz(1, 0, 0), xyz(40, 0, 40)},
	})
	assert.Equal(t, 3, reply["count"])
	assert.Equal(t, before+3, f.world.Count("nether"))

	reply = f.call(t, OpChunkUnload, uuid.Nil, map[string]any{
		"world": "nether", "pos": xyz(1, 0, 1),
	})
	assert.Equal(t, true, reply["ok"])
	assert.Equal(t, 1, f.world.Count("nether"))
}

func TestRejectedCommands(t *testing.T) {
	f := setup(t)
	p := basedata.SampleParticipant.String()
	tests := []struct {
		name    string
		op      string
		payload string
		wantErr string
	}{
		{"invalid json", OpName, `{"clientVersion":`, "invalid command payload"},
		{"no object", OpName, `[1,2]`, "command payload must be an object"},
		{"no version", OpName, `{"participant":"` + p + `"}`, "client version"},
		{
			"old version", OpName,
			`{"clientVersion":"0.0.9","participant":"` + p + `"}`, "client version",
		},
		{"bad participant", OpName, `{"clientVersion":"0.1.0","participant":"x"}`, "participant"},
		{
			"unknown op", "race.fly",
			`{"clientVersion":"0.1.0","participant":"` + p + `"}`, "unknown command",
		},
		{
			"bad face", OpBuildBlock,
			`{"clientVersion":"0.1.0","participant":"` + p +
				`","world":"overworld","pos":{"x":1,"y":1,"z":1},"face":"inside"}`,
			"unknown face",
		},
		{
			"missing pos", OpSample,
			`{"clientVersion":"0.1.0","participant":"` + p + `","world":"overworld"}`,
			"invalid position",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := f.d.Handle(context.Background(), tt.op, []byte(tt.payload))
			assert.Equal(t, false, reply["ok"])
			assert.Contains(t, reply["error"], tt.wantErr)
		})
	}
}
