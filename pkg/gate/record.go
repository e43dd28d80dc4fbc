package gate

import (
	"slices"

	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

// Def holds what is persisted for a gate. Everything else is derived by Build.
type Def struct {
	World string     `json:"world"`
	A     voxel.Pos  `json:"a"`
	Face  voxel.Face `json:"face"`
	B     voxel.Pos  `json:"b"`
}

// Air is the voxel next to A on the clicked face.
func (d Def) Air() voxel.Pos {
	return d.A.Add(d.Face.Normal())
}

// Record is the geometry of a built gate. It must not be modified after Build.
type Record struct {
	Def
	Origin   voxel.Pos // bounding box min corner
	Farthest voxel.Pos // bounding box max corner
	Axis     voxel.Axis
	Right    voxel.Pos
	Up       voxel.Pos
	Normal   voxel.Pos
	// outer column bounds per row, inclusive
	RowMin   []int
	RowMax   []int
	Path     []voxel.Pos
	Interior []voxel.Pos
}

// Contains reports whether p is inside the bounding box of the gate.
func (r *Record) Contains(p voxel.Pos) bool {
	return p.X >= r.Origin.X && p.X <= r.Farthest.X &&
		p.Y >= r.Origin.Y && p.Y <= r.Farthest.Y &&
		p.Z >= r.Origin.Z && p.Z <= r.Farthest.Z
}

// OnPath reports whether p is one of the boundary voxels.
func (r *Record) OnPath(p voxel.Pos) bool {
	return slices.Contains(r.Path, p)
}

// Rows returns the number of rows along Up.
func (r *Record) Rows() int {
	return len(r.RowMin)
}
