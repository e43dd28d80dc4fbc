package gate

import (
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const DefaultMaxPathLength = 64

type (
	Option func(*config)
	config struct {
		maxPathLength int
	}
)

// WithMaxPathLength limits the number of boundary voxels of a gate.
func WithMaxPathLength(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPathLength = n
		}
	}
}

// Build traces the boundary of the gate defined by def and derives its
// interior. The returned error is a *GeometryError.
//
//nolint:funlen,cyclop // by design
func Build(def Def, oracle voxel.Oracle, opts ...Option) (*Record, error) {
	cfg := &config{maxPathLength: DefaultMaxPathLength}
	for _, opt := range opts {
		opt(cfg)
	}
	if !def.Face.Valid() {
		return nil, newGeometryError(ErrInvalidFace, "Invalid face.")
	}
	solid := func(p voxel.Pos) bool { return oracle.IsSolid(def.World, p) }
	a, b := def.A, def.B
	air := def.Air()

	if !solid(a) || !solid(b) || solid(air) {
		return nil, newGeometryError(ErrSolidity,
			"Starting blocks do not have the correct solidity.")
	}
	fixed := fixedAxes(a, b, air)
	if len(fixed) != 1 {
		return nil, newGeometryError(ErrAmbiguousAxis,
			"Unable to determine axis-aligned dimension.")
	}
	distB := a.Manhattan(b)
	bTouching := distB == 1 || (distB == 2 && len(fixedAxes(a, b)) == 1)
	if !bTouching || a.Manhattan(air) != 1 {
		return nil, newGeometryError(ErrNotTouching,
			"Starting blocks are not touching correctly.")
	}

	t := &tracer{basis: bases[fixed[0]], solid: solid, maxLen: cfg.maxPathLength}
	path, err := t.trace(a, b, air)
	if err != nil {
		return nil, err
	}
	origin, farthest := boundingBox(path)
	interior, rowMin, rowMax, err := t.interior(origin, farthest, path)
	if err != nil {
		return nil, err
	}

	foundAir := false
	for _, p := range interior {
		if solid(p) {
			return nil, newGeometryError(ErrSolidInterior,
				"Found a solid interior block.",
				"Gate interior should not have solid blocks.")
		}
		if p == air {
			foundAir = true
		}
	}
	if !foundAir {
		return nil, newGeometryError(ErrWrongFace,
			"Air was not visited.",
			"You must click on the gate's interior face.")
	}

	return &Record{
		Def:      def,
		Origin:   origin,
		Farthest: farthest,
		Axis:     t.axis,
		Right:    t.right,
		Up:       t.up,
		Normal:   t.normal,
		RowMin:   rowMin,
		RowMax:   rowMax,
		Path:     path,
		Interior: interior,
	}, nil
}

func boundingBox(path []voxel.Pos) (lo, hi voxel.Pos) {
	lo, hi = path[0], path[0]
	for _, p := range path[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi
}
