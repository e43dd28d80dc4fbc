package voxel

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestFromLayers(t *testing.T) {
	got := FromLayers(
		"x x\n"+
			" x",
		"\r\n  x",
	)
	assert.ElementsMatch(t, []Pos{
		{0, 0, 0}, {2, 0, 0}, {1, 0, 1}, {2, 1, 1},
	}, got)
}

func TestWorld(t *testing.T) {
	w := NewWorld()
	assert.False(t, w.IsSolid("w", P(1, 2, 3)))
	assert.True(t, w.Set("w", P(1, 2, 3), true))
	assert.False(t, w.Set("w", P(1, 2, 3), true))
	assert.True(t, w.IsSolid("w", P(1, 2, 3)))
	assert.False(t, w.IsSolid("other", P(1, 2, 3)))

	w.SetAll("w", []Pos{P(-1, 0, -1), P(-17, 0, 0)})
	assert.Equal(t, 3, w.Count("w"))
	assert.True(t, w.IsSolid("w", P(-17, 0, 0)))

	assert.True(t, w.Set("w", P(1, 2, 3), false))
	assert.False(t, w.Set("w", P(1, 2, 3), false))
	assert.Equal(t, 2, w.Count("w"))

	w.UnloadChunk("w", P(-2, 100, -2))
	assert.False(t, w.IsSolid("w", P(-1, 0, -1)))
	assert.True(t, w.IsSolid("w", P(-17, 0, 0)))
}

func TestParseFace(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Face
		wantErr bool
	}{
		{name: "name", in: "east", want: East},
		{name: "upper case", in: "NORTH", want: North},
		{name: "numeric", in: "1", want: Up},
		{name: "unknown", in: "left", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFace(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFace() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFaceNormals(t *testing.T) {
	for _, f := range []Face{Down, Up, North, South, West, East} {
		assert.Equal(t, f.Normal().Mul(-1), f.Opposite().Normal(), f.String())
		back, ok := FaceFromNormal(f.Normal())
		assert.True(t, ok)
		assert.Equal(t, f, back)
	}
}

func TestPosMath(t *testing.T) {
	a := P(1, 0, 0)
	b := P(0, 1, 0)
	assert.Equal(t, P(0, 0, 1), a.Cross(b))
	assert.Equal(t, 0, a.Dot(b))
	assert.Equal(t, 2, a.Manhattan(b))
	assert.Equal(t, "[1, -2, 3]", P(1, -2, 3).String())
	assert.Equal(t, P(-1, 0, 2), Floor(mgl64.Vec3{-0.5, 0.99, 2.0}))
}
