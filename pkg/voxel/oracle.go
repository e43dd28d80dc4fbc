package voxel

// Oracle answers whether a voxel of a world is solid.
// Implementations must be safe for concurrent use.
type Oracle interface {
	IsSolid(world string, p Pos) bool
}

type OracleFunc func(world string, p Pos) bool

func (f OracleFunc) IsSolid(world string, p Pos) bool { return f(world, p) }
