package basedata

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const World = "overworld"

// SimpleTrackLayers is a two gate track. Gate 0 lies in the plane z=1,
// gate 1 in the plane z=3. Both are passed towards +z.
var SimpleTrackLayers = []string{
	"xxxxx\n" +
		"xxxxx\n" +
		"xxxxx\n" +
		"xxxxx\n" +
		"xxxxx",

	"     \n" +
		"xxxxx\n" +
		" x   \n" +
		"x   x\n" +
		" x   ",

	"     \n" +
		"x   x\n" +
		" x   \n" +
		"x   x\n" +
		" x   ",

	"     \n" +
		"x   x\n" +
		" x   \n" +
		"x   x\n" +
		" x   ",

	"     \n" +
		"x   x\n" +
		" x   \n" +
		"x   x\n" +
		" x   ",

	"     \n" +
		"xxxxx\n" +
		" x   \n" +
		"xxxxx\n" +
		" x   ",
}

var (
	SimpleTrackStart = model.StartKey{World: World, Pos: voxel.P(0, 0, 0)}
	// anchors of the simple track gates as a builder would pick them
	SimpleTrackGate0 = gate.Def{
		World: World, A: voxel.P(1, 1, 1), Face: voxel.Up, B: voxel.P(2, 1, 1),
	}
	SimpleTrackGate1 = gate.Def{
		World: World, A: voxel.P(1, 0, 3), Face: voxel.Up, B: voxel.P(2, 0, 3),
	}
	SampleOwner       = uuid.Must(uuid.FromString("7d1f3bbc-8f4e-4c51-9d8e-0d9a8b1c2f01"))
	SampleParticipant = uuid.Must(uuid.FromString("3c6b0e4a-1d2f-4e3a-8b5c-6a7d8e9f0a12"))
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

// SimpleTrackWorld returns a world mirror containing the simple track.
func SimpleTrackWorld() *voxel.World {
	return voxel.WorldFromLayers(World, SimpleTrackLayers...)
}

func SampleTrack() *model.Track {
	return &model.Track{
		OwnerID: SampleOwner,
		Name:    "simple_track",
		Start:   SimpleTrackStart,
	}
}

// SampleGates returns the persisted form of the simple track gates.
func SampleGates() []model.Gate {
	return []model.Gate{
		{Index: 0, Def: SimpleTrackGate0, Origin: voxel.P(0, 1, 1), Farthest: voxel.P(4, 5, 1)},
		{Index: 1, Def: SimpleTrackGate1, Origin: voxel.P(0, 0, 3), Farthest: voxel.P(4, 5, 3)},
	}
}
