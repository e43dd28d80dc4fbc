// Package fixture describes a single gate together with the voxels around
// it. Fixtures are used to try out gate geometry without a running host.
package fixture

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const defaultWorld = "overworld"

// Fixture is read from YAML (or JSON, which is valid YAML).
//
//	world: overworld
//	layers:            # layer index is y, line is z, char is x
//	  - |
//	    xxx
//	a: {x: 1, y: 1, z: 1}
//	face: up
//	b: {x: 2, y: 1, z: 1}
type Fixture struct {
	World         string    `yaml:"world"`
	Layers        []string  `yaml:"layers"`
	A             voxel.Pos `yaml:"a"`
	Face          string    `yaml:"face"`
	B             voxel.Pos `yaml:"b"`
	MaxPathLength int       `yaml:"maxPathLength"`
}

// Result is a condensed view of a build outcome.
type Result struct {
	OK         bool      `yaml:"ok" json:"ok"`
	Origin     voxel.Pos `yaml:"origin,omitempty" json:"origin"`
	Farthest   voxel.Pos `yaml:"farthest,omitempty" json:"farthest"`
	Axis       string    `yaml:"axis,omitempty" json:"axis,omitempty"`
	PathLength int       `yaml:"pathLength,omitempty" json:"pathLength,omitempty"`
	Interior   int       `yaml:"interior,omitempty" json:"interior,omitempty"`
	Rows       int       `yaml:"rows,omitempty" json:"rows,omitempty"`
	Error      string    `yaml:"error,omitempty" json:"error,omitempty"`
	Reason     string    `yaml:"reason,omitempty" json:"reason,omitempty"`
}

func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	if len(f.Layers) == 0 {
		return nil, errors.New("invalid fixture: no layers")
	}
	if f.World == "" {
		f.World = defaultWorld
	}
	return &f, nil
}

func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (f *Fixture) Def() (gate.Def, error) {
	face, err := voxel.ParseFace(f.Face)
	if err != nil {
		return gate.Def{}, err
	}
	return gate.Def{World: f.World, A: f.A, Face: face, B: f.B}, nil
}

// Build runs the gate builder on the fixture. Geometry errors are part of
// the result, only an invalid fixture is returned as error.
func (f *Fixture) Build() (*gate.Record, *Result, error) {
	def, err := f.Def()
	if err != nil {
		return nil, nil, err
	}
	var opts []gate.Option
	if f.MaxPathLength > 0 {
		opts = append(opts, gate.WithMaxPathLength(f.MaxPathLength))
	}
	rec, err := gate.Build(def, voxel.WorldFromLayers(f.World, f.Layers...), opts...)
	if err != nil {
		return nil, &Result{Error: err.Error(), Reason: gate.UserReason(err)}, nil
	}
	return rec, &Result{
		OK:         true,
		Origin:     rec.Origin,
		Farthest:   rec.Farthest,
		Axis:       rec.Axis.String(),
		PathLength: len(rec.Path),
		Interior:   len(rec.Interior),
		Rows:       rec.Rows(),
	}, nil
}
