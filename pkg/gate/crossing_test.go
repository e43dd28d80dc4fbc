package gate_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
)

func TestCrossing(t *testing.T) {
	// gate 0 spans x 0..4, y 1..5 in the plane z=1.5
	rec, err := gate.Build(basedata.SimpleTrackGate0, basedata.SimpleTrackWorld())
	require.NoError(t, err)

	type args struct {
		prev mgl64.Vec3
		curr mgl64.Vec3
	}
	tests := []struct {
		name    string
		args    args
		want    bool
		wantHit mgl64.Vec3
	}{
		{
			name:    "through the middle",
			args:    args{prev: mgl64.Vec3{2, 3, 0}, curr: mgl64.Vec3{2, 3, 3}},
			want:    true,
			wantHit: mgl64.Vec3{2, 3, 1.5},
		},
		{
			name:    "opposite direction",
			args:    args{prev: mgl64.Vec3{2, 3, 3}, curr: mgl64.Vec3{2, 3, 0}},
			want:    true,
			wantHit: mgl64.Vec3{2, 3, 1.5},
		},
		{
			name:    "stop exactly on plane",
			args:    args{prev: mgl64.Vec3{1, 2, 0}, curr: mgl64.Vec3{1, 2, 1.5}},
			want:    true,
			wantHit: mgl64.Vec3{1, 2, 1.5},
		},
		{
			name:    "stop slightly before plane",
			args:    args{prev: mgl64.Vec3{1, 2, 0}, curr: mgl64.Vec3{1, 2, 1.5 - 1e-7}},
			want:    true,
			wantHit: mgl64.Vec3{1, 2, 1.5},
		},
		{
			name: "stop before plane",
			args: args{prev: mgl64.Vec3{1, 2, 0}, curr: mgl64.Vec3{1, 2, 1.4}},
		},
		{
			name:    "row min is inclusive",
			args:    args{prev: mgl64.Vec3{0.5, 2.5, 0}, curr: mgl64.Vec3{0.5, 2.5, 2}},
			want:    true,
			wantHit: mgl64.Vec3{0.5, 2.5, 1.5},
		},
		{
			name:    "row max is inclusive",
			args:    args{prev: mgl64.Vec3{3.5, 1.5, 0}, curr: mgl64.Vec3{3.5, 1.5, 2}},
			want:    true,
			wantHit: mgl64.Vec3{3.5, 1.5, 1.5},
		},
		{
			name: "beyond row max",
			args: args{prev: mgl64.Vec3{4.5, 1.5, 0}, curr: mgl64.Vec3{4.5, 1.5, 2}},
		},
		{
			name: "skipped corner",
			args: args{prev: mgl64.Vec3{0.5, 1.5, 0}, curr: mgl64.Vec3{0.5, 1.5, 2}},
		},
		{
			name: "outside bounding box",
			args: args{prev: mgl64.Vec3{4, 10, 4}, curr: mgl64.Vec3{4, 10, 0}},
		},
		{
			name: "parallel to plane",
			args: args{prev: mgl64.Vec3{0, 3, 1.5}, curr: mgl64.Vec3{4, 3, 1.5}},
		},
		{
			name: "plane behind",
			args: args{prev: mgl64.Vec3{2, 3, 2}, curr: mgl64.Vec3{2, 3, 3}},
		},
		{
			name: "no movement",
			args: args{prev: mgl64.Vec3{2, 3, 1.5}, curr: mgl64.Vec3{2, 3, 1.5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Test(tt.args.prev, tt.args.curr, rec)
			assert.Equal(t, tt.want, got.Passed)
			if tt.want {
				assert.InDeltaSlice(t, tt.wantHit[:], got.Hit[:], 1e-6)
			}
		})
	}
}

func TestIsGateVoxel(t *testing.T) {
	rec, err := gate.Build(basedata.SimpleTrackGate1, basedata.SimpleTrackWorld())
	require.NoError(t, err)

	assert.True(t, rec.IsGateVoxel(voxel.P(2, 2, 3)))
	assert.True(t, rec.IsGateVoxel(voxel.P(0, 2, 3)))
	assert.True(t, rec.IsGateVoxel(voxel.P(3, 0, 3)))
	assert.False(t, rec.IsGateVoxel(voxel.P(0, 0, 3)))
	assert.False(t, rec.IsGateVoxel(voxel.P(4, 5, 3)))
	assert.False(t, rec.IsGateVoxel(voxel.P(2, 2, 2)))
	assert.False(t, rec.IsGateVoxel(voxel.P(2, 6, 3)))
}

func TestFindSolidNeighbors(t *testing.T) {
	w := basedata.SimpleTrackWorld()
	tests := []struct {
		name string
		pos  voxel.Pos
		face voxel.Face
		want []voxel.Pos
	}{
		{
			name: "gate 0 anchor",
			pos:  voxel.P(1, 1, 1),
			face: voxel.Up,
			want: []voxel.Pos{voxel.P(1, 2, 2), voxel.P(2, 1, 1)},
		},
		{
			name: "gate 1 anchor",
			pos:  voxel.P(1, 0, 3),
			face: voxel.Up,
			want: []voxel.Pos{voxel.P(1, 1, 4), voxel.P(2, 0, 3)},
		},
		{
			name: "nothing around",
			pos:  voxel.P(10, 10, 10),
			face: voxel.Up,
			want: []voxel.Pos{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.FindSolidNeighbors(basedata.World, tt.pos, tt.face, w)
			assert.Equal(t, tt.want, got)
		})
	}
}
