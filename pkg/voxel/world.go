package voxel

import (
	"sync"
)

const chunkDim = 16

type chunkKey struct{ X, Z int }

func chunkOf(p Pos) chunkKey {
	return chunkKey{floorDiv(p.X, chunkDim), floorDiv(p.Z, chunkDim)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

type worldData struct {
	chunks map[chunkKey]map[Pos]struct{}
}

// World mirrors the solid voxels reported by the host, grouped by chunk.
type World struct {
	mu     sync.RWMutex
	worlds map[string]*worldData
}

var _ Oracle = (*World)(nil)

func NewWorld() *World {
	return &World{worlds: make(map[string]*worldData)}
}

func (w *World) IsSolid(world string, p Pos) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	wd, ok := w.worlds[world]
	if !ok {
		return false
	}
	c, ok := wd.chunks[chunkOf(p)]
	if !ok {
		return false
	}
	_, ok = c[p]
	return ok
}

// Set stores the solidity of p and reports whether it changed.
func (w *World) Set(world string, p Pos, solid bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.set(world, p, solid)
}

// SetAll marks all given positions as solid.
func (w *World) SetAll(world string, solid []Pos) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range solid {
		w.set(world, p, true)
	}
}

func (w *World) set(world string, p Pos, solid bool) bool {
	wd, ok := w.worlds[world]
	if !ok {
		if !solid {
			return false
		}
		wd = &worldData{chunks: make(map[chunkKey]map[Pos]struct{})}
		w.worlds[world] = wd
	}
	key := chunkOf(p)
	c, ok := wd.chunks[key]
	if !ok {
		if !solid {
			return false
		}
		c = make(map[Pos]struct{})
		wd.chunks[key] = c
	}
	_, was := c[p]
	if solid {
		c[p] = struct{}{}
	} else {
		delete(c, p)
		if len(c) == 0 {
			delete(wd.chunks, key)
		}
	}
	return was != solid
}

// UnloadChunk drops all voxels of the chunk containing p.
func (w *World) UnloadChunk(world string, p Pos) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wd, ok := w.worlds[world]; ok {
		delete(wd.chunks, chunkOf(p))
	}
}

// Count returns the number of solid voxels known for world.
func (w *World) Count(world string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	wd, ok := w.worlds[world]
	if !ok {
		return 0
	}
	n := 0
	for _, c := range wd.chunks {
		n += len(c)
	}
	return n
}
