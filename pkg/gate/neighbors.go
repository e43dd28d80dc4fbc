package gate

import "github.com/mpapenbr/gaterace-service-go/pkg/voxel"

// FindSolidNeighbors returns candidate partners for a clicked boundary voxel.
// At most one voxel is returned for the vertical and one for the horizontal
// direction of the clicked face, preferring voxels that sit diagonally
// towards the face over straight neighbours.
func FindSolidNeighbors(world string, pos voxel.Pos, face voxel.Face, oracle voxel.Oracle) []voxel.Pos {
	var up, right voxel.Face
	switch face {
	case voxel.Up, voxel.Down:
		up, right = voxel.South, voxel.East
	case voxel.North, voxel.South:
		up, right = voxel.Up, voxel.East
	default:
		up, right = voxel.Up, voxel.South
	}
	toFace := face.Normal()
	first := func(dir voxel.Face) (voxel.Pos, bool) {
		straight := pos.Add(dir.Normal())
		for _, p := range []voxel.Pos{straight.Add(toFace), straight} {
			if oracle.IsSolid(world, p) {
				return p, true
			}
		}
		return voxel.Pos{}, false
	}

	ret := make([]voxel.Pos, 0, 2)
	for _, dirs := range [][2]voxel.Face{{up, up.Opposite()}, {right, right.Opposite()}} {
		if p, ok := first(dirs[0]); ok {
			ret = append(ret, p)
		} else if p, ok := first(dirs[1]); ok {
			ret = append(ret, p)
		}
	}
	return ret
}
