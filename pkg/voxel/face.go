package voxel

import (
	"fmt"
	"strings"
)

// Face is the side of a voxel that was clicked.
// The numeric values are persisted and must not change.
type Face int

const (
	Down Face = iota
	Up
	North
	South
	West
	East
)

var faceNames = [...]string{"down", "up", "north", "south", "west", "east"}

var faceNormals = [...]Pos{
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
	{-1, 0, 0},
	{1, 0, 0},
}

func (f Face) Valid() bool { return f >= Down && f <= East }

// Normal is the unit vector pointing out of the face.
func (f Face) Normal() Pos {
	if !f.Valid() {
		return Pos{}
	}
	return faceNormals[f]
}

func (f Face) Opposite() Face {
	return f ^ 1
}

func (f Face) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Face(%d)", int(f))
	}
	return faceNames[f]
}

// ParseFace accepts the face name (case insensitive) or its numeric value.
func ParseFace(s string) (Face, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range faceNames {
		if s == name || s == fmt.Sprint(i) {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown face %q", s)
}

// FaceFromNormal returns the face whose normal equals n.
func FaceFromNormal(n Pos) (Face, bool) {
	for i, v := range faceNormals {
		if v == n {
			return Face(i), true
		}
	}
	return 0, false
}
