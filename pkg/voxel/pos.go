package voxel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pos is an integer voxel coordinate.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

func P(x, y, z int) Pos { return Pos{X: x, Y: y, Z: z} }

func (p Pos) Add(o Pos) Pos { return Pos{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }
func (p Pos) Sub(o Pos) Pos { return Pos{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }
func (p Pos) Mul(k int) Pos { return Pos{p.X * k, p.Y * k, p.Z * k} }
func (p Pos) Dot(o Pos) int { return p.X*o.X + p.Y*o.Y + p.Z*o.Z }

func (p Pos) Cross(o Pos) Pos {
	return Pos{
		p.Y*o.Z - p.Z*o.Y,
		p.Z*o.X - p.X*o.Z,
		p.X*o.Y - p.Y*o.X,
	}
}

func (p Pos) Abs() Pos { return Pos{absInt(p.X), absInt(p.Y), absInt(p.Z)} }

func (p Pos) Manhattan(o Pos) int {
	return absInt(p.X-o.X) + absInt(p.Y-o.Y) + absInt(p.Z-o.Z)
}

// Get returns the coordinate along axis.
func (p Pos) Get(axis Axis) int {
	switch axis {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	default:
		return p.Z
	}
}

// Min returns the per-axis minimum of p and o.
func (p Pos) Min(o Pos) Pos {
	return Pos{min(p.X, o.X), min(p.Y, o.Y), min(p.Z, o.Z)}
}

// Max returns the per-axis maximum of p and o.
func (p Pos) Max(o Pos) Pos {
	return Pos{max(p.X, o.X), max(p.Y, o.Y), max(p.Z, o.Z)}
}

func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X), float64(p.Y), float64(p.Z)}
}

// Center is the middle of the voxel in continuous space.
func (p Pos) Center() mgl64.Vec3 {
	return p.Vec3().Add(mgl64.Vec3{0.5, 0.5, 0.5})
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d, %d]", p.X, p.Y, p.Z)
}

// Floor returns the voxel containing v.
func Floor(v mgl64.Vec3) Pos {
	return Pos{
		int(math.Floor(v.X())),
		int(math.Floor(v.Y())),
		int(math.Floor(v.Z())),
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

var Axes = [3]Axis{AxisX, AxisY, AxisZ}
