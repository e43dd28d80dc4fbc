package gate

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const (
	// smallest float32 step, the tolerance used by the ray/plane test
	rayEpsilon = 1.1920929e-7
	// movements that stop this short before the plane still count
	reachBias = 0.001 * 0.001
)

type CrossingResult struct {
	Passed bool
	Hit    mgl64.Vec3
}

// Test checks whether the movement from prev to curr passes through the gate.
// On success Hit is the point where the gate plane was crossed.
func Test(prev, curr mgl64.Vec3, rec *Record) CrossingResult {
	if prev == curr {
		return CrossingResult{}
	}
	normal := rec.Normal.Vec3()
	planePoint := rec.Origin.Vec3().Add(rec.Normal.Abs().Vec3().Mul(0.5))
	dir := curr.Sub(prev).Normalize()

	hit, ok := intersectPlane(prev, dir, normal, planePoint)
	if !ok {
		return CrossingResult{}
	}
	travel := curr.Sub(prev).LenSqr()
	needed := hit.Sub(prev).LenSqr()
	if travel-needed <= -reachBias {
		return CrossingResult{}
	}
	if !rec.IsGateVoxel(voxel.Floor(hit)) {
		return CrossingResult{}
	}
	return CrossingResult{Passed: true, Hit: hit}
}

// intersectPlane intersects the ray origin+t*dir (t > 0) with the plane
// through point with the given normal.
func intersectPlane(origin, dir, normal, point mgl64.Vec3) (mgl64.Vec3, bool) {
	denominator := normal.Dot(dir)
	if math.Abs(denominator) < rayEpsilon {
		return mgl64.Vec3{}, false
	}
	t := (normal.Dot(point) - normal.Dot(origin)) / denominator
	if t < rayEpsilon {
		return mgl64.Vec3{}, false
	}
	return origin.Add(dir.Mul(t)), true
}

// IsGateVoxel reports whether p lies within the admissible region of the
// gate. The outer row bounds are used, so voxels of the boundary itself
// are accepted.
func (r *Record) IsGateVoxel(p voxel.Pos) bool {
	for _, axis := range voxel.Axes {
		lo, hi, v := r.Origin.Get(axis), r.Farthest.Get(axis), p.Get(axis)
		if v < lo || v > hi {
			return false
		}
	}
	local := p.Sub(r.Origin)
	row := local.Dot(r.Up)
	col := local.Dot(r.Right)
	if row < 0 || row >= len(r.RowMin) {
		return false
	}
	return r.RowMin[row] <= col && col <= r.RowMax[row]
}
