package voxel

import (
	"regexp"
)

var lineSplit = regexp.MustCompile(`\r?\n`)

// FromLayers parses a layered text template into solid positions.
// The layer index is y, the line index within a layer is z and the
// character index is x. Every non-space character is solid.
func FromLayers(layers ...string) []Pos {
	ret := make([]Pos, 0)
	for y, layer := range layers {
		for z, line := range lineSplit.Split(layer, -1) {
			for x, c := range line {
				if c != ' ' {
					ret = append(ret, Pos{x, y, z})
				}
			}
		}
	}
	return ret
}

// WorldFromLayers creates a world mirror holding the template in world.
func WorldFromLayers(world string, layers ...string) *World {
	w := NewWorld()
	w.SetAll(world, FromLayers(layers...))
	return w
}
