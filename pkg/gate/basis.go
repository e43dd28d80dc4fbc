package gate

import "github.com/mpapenbr/gaterace-service-go/pkg/voxel"

// basis describes the plane of a gate.
// normal is always right x up.
type basis struct {
	axis   voxel.Axis
	right  voxel.Pos
	up     voxel.Pos
	normal voxel.Pos
}

var bases = [3]basis{
	voxel.AxisX: {
		axis:   voxel.AxisX,
		right:  voxel.P(0, 0, 1),
		up:     voxel.P(0, 1, 0),
		normal: voxel.P(-1, 0, 0),
	},
	voxel.AxisY: {
		axis:   voxel.AxisY,
		right:  voxel.P(1, 0, 0),
		up:     voxel.P(0, 0, 1),
		normal: voxel.P(0, -1, 0),
	},
	voxel.AxisZ: {
		axis:   voxel.AxisZ,
		right:  voxel.P(1, 0, 0),
		up:     voxel.P(0, 1, 0),
		normal: voxel.P(0, 0, 1),
	},
}

// fixedAxes returns the axes on which all given positions agree.
func fixedAxes(first voxel.Pos, others ...voxel.Pos) []voxel.Axis {
	ret := make([]voxel.Axis, 0, 3)
	for _, axis := range voxel.Axes {
		fixed := true
		for _, p := range others {
			if p.Get(axis) != first.Get(axis) {
				fixed = false
				break
			}
		}
		if fixed {
			ret = append(ret, axis)
		}
	}
	return ret
}
