package gate

import (
	"math"

	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

type tracer struct {
	basis
	solid  func(voxel.Pos) bool
	maxLen int
}

// trace walks the boundary counter clockwise (looking down the normal)
// starting at a until it reaches a again.
func (t *tracer) trace(a, b, air voxel.Pos) ([]voxel.Pos, error) {
	current := a
	currentAir, err := t.rotate(current, air)
	if err != nil {
		return nil, err
	}
	path := make([]voxel.Pos, 1, t.maxLen+1)
	path[0] = a
	bVisited := false

	for length := 1; length <= t.maxLen; length++ {
		next, nextAir, err := t.step(current, currentAir)
		if err != nil {
			return nil, err
		}
		if len(path) >= 2 && next == path[len(path)-2] {
			return nil, newGeometryError(ErrDeadEnd, "Dead end. Gate not closed.")
		}
		current = next
		if currentAir, err = t.rotate(current, nextAir); err != nil {
			return nil, err
		}
		if current == b {
			bVisited = true
		}
		if current == a {
			break
		}
		path = append(path, current)
	}

	if len(path) > t.maxLen {
		return nil, newGeometryError(ErrPathTooLong,
			"Found path is greater than the allowed maximum.",
			"Gate is too big.")
	}
	if len(path) == t.maxLen && current != a {
		return nil, newGeometryError(ErrPathTooLong,
			"Max iteration reached without wrapping back to starting point.",
			"Gate is too big.")
	}
	if !bVisited {
		return nil, newGeometryError(ErrAnchorNotVisited, "B was not visited.")
	}
	return path, nil
}

// step moves to the next solid voxel. Two layouts are handled, seen from
// the current solid s with the air voxel a on top:
//
//	aa      as
//	ss      s
//
// In the straight case (left) the air voxel slides along with the solid.
func (t *tracer) step(solid, air voxel.Pos) (nextSolid, nextAir voxel.Pos, err error) {
	toAir := air.Sub(solid)
	dir := toAir.Cross(t.normal)
	diagonal := solid.Add(dir).Add(toAir)
	if t.solid(diagonal) {
		return diagonal, air, nil
	}
	straight := solid.Add(dir)
	if t.solid(straight) {
		return straight, diagonal, nil
	}
	return voxel.Pos{}, voxel.Pos{}, newGeometryError(ErrUnclassifiedStep,
		"Unable to determine if we are in case 1 or 2.")
}

// rotate turns the air voxel clockwise around solid, face by face, until a
// solid voxel blocks the next rotation.
func (t *tracer) rotate(solid, air voxel.Pos) (voxel.Pos, error) {
	testAir := air
	for range 3 {
		toAir := testAir.Sub(solid)
		dir := toAir.Cross(t.normal)
		diagonal := solid.Add(dir).Add(toAir)
		straight := solid.Add(dir)
		if t.solid(diagonal) || t.solid(straight) {
			return testAir, nil
		}
		testAir = straight
	}
	return voxel.Pos{}, newGeometryError(ErrSingleVoxel,
		"Unable to find neighboring solid block.",
		"A single block cannot be a gate.")
}

// interior projects the boundary onto rows (along up) and columns (along
// right). Every boundary voxel must be consumed by shrinking the row and
// column bounds inward, otherwise the boundary is concave. The returned
// bounds are the outer ones, taken before shrinking.
//
//nolint:funlen,cyclop // by design
func (t *tracer) interior(origin, farthest voxel.Pos, path []voxel.Pos) (
	cells []voxel.Pos, outerMin, outerMax []int, err error,
) {
	span := farthest.Sub(origin)
	nRows := span.Dot(t.up) + 1
	nCols := span.Dot(t.right) + 1

	rows := makeBuckets(nRows)
	cols := makeBuckets(nCols)
	rowMin, rowMax := makeBounds(nRows)
	colMin, colMax := makeBounds(nCols)

	for _, p := range path {
		local := p.Sub(origin)
		row := local.Dot(t.up)
		col := local.Dot(t.right)
		rowMin[row] = min(rowMin[row], col)
		rowMax[row] = max(rowMax[row], col)
		colMin[col] = min(colMin[col], row)
		colMax[col] = max(colMax[col], row)
		rows[row][col] = struct{}{}
		cols[col][row] = struct{}{}
	}
	outerMin = append([]int(nil), rowMin...)
	outerMax = append([]int(nil), rowMax...)

	for row := range rows {
		rowMin[row] = t.shrink(rows[row], rowMin[row], 1)
		rowMax[row] = t.shrink(rows[row], rowMax[row], -1)
	}
	for col := range cols {
		colMin[col] = t.shrink(cols[col], colMin[col], 1)
		colMax[col] = t.shrink(cols[col], colMax[col], -1)
	}
	for _, bucket := range append(rows, cols...) {
		if len(bucket) != 0 {
			return nil, nil, nil, newGeometryError(ErrNotConvex,
				"Gate is not convex.", "Gate is not convex.")
		}
	}

	cells = make([]voxel.Pos, 0)
	for row := 1; row < nRows-1; row++ {
		if rowMin[row] > rowMax[row] {
			continue
		}
		for col := rowMin[row] + 1; col <= rowMax[row]-1; col++ {
			cells = append(cells, origin.Add(t.right.Mul(col)).Add(t.up.Mul(row)))
		}
	}
	return cells, outerMin, outerMax, nil
}

// shrink consumes contiguous boundary voxels starting at bound in direction
// dir and returns the innermost bound reached.
func (t *tracer) shrink(bucket map[int]struct{}, bound, dir int) int {
	if bound == math.MaxInt || bound == math.MinInt {
		return bound
	}
	for count := 0; count < t.maxLen; {
		_, next := bucket[bound+dir]
		delete(bucket, bound)
		count++
		if !next {
			break
		}
		bound += dir
	}
	return bound
}

func makeBuckets(n int) []map[int]struct{} {
	ret := make([]map[int]struct{}, n)
	for i := range ret {
		ret[i] = make(map[int]struct{})
	}
	return ret
}

func makeBounds(n int) (lo, hi []int) {
	lo = make([]int, n)
	hi = make([]int, n)
	for i := range n {
		lo[i] = math.MaxInt
		hi[i] = math.MinInt
	}
	return lo, hi
}
