package nats

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofrs/uuid/v5"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

var (
	pathVersion     = jp.MustParseString("$.clientVersion")
	pathParticipant = jp.MustParseString("$.participant")
	pathName        = jp.MustParseString("$.name")
	pathWorld       = jp.MustParseString("$.world")
	pathFace        = jp.MustParseString("$.face")
	pathTrackName   = jp.MustParseString("$.trackName")
	pathSolid       = jp.MustParseString("$.solid")
	pathChangedBy   = jp.MustParseString("$.changedBy")
	pathBlocks      = jp.MustParseString("$.blocks[*]")
	pathX           = jp.MustParseString("$.x")
	pathY           = jp.MustParseString("$.y")
	pathZ           = jp.MustParseString("$.z")
)

// command is a decoded command payload. Fields are read lazily since every
// command uses a different subset.
type command struct {
	obj any
}

func parseCommand(data []byte) (*command, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid command payload: %w", err)
	}
	if _, ok := obj.(map[string]any); !ok {
		return nil, errors.New("command payload must be an object")
	}
	return &command{obj: obj}, nil
}

func (c *command) str(x jp.Expr) string {
	if v, ok := x.First(c.obj).(string); ok {
		return v
	}
	return ""
}

func (c *command) flag(x jp.Expr) bool {
	v, _ := x.First(c.obj).(bool)
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (c *command) participant() (uuid.UUID, error) {
	id, err := uuid.FromString(c.str(pathParticipant))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid participant: %w", err)
	}
	return id, nil
}

// vec reads an {x,y,z} object found at key.
func (c *command) vec(key string) (mgl64.Vec3, error) {
	return toVec(jp.R().C(key).First(c.obj))
}

func toVec(obj any) (mgl64.Vec3, error) {
	var ret mgl64.Vec3
	for i, x := range []jp.Expr{pathX, pathY, pathZ} {
		v, ok := toFloat(x.First(obj))
		if !ok {
			return ret, fmt.Errorf("invalid position %v", obj)
		}
		ret[i] = v
	}
	return ret, nil
}

func (c *command) pos(key string) (voxel.Pos, error) {
	v, err := c.vec(key)
	if err != nil {
		return voxel.Pos{}, err
	}
	return voxel.Floor(v), nil
}

func (c *command) start() (model.StartKey, error) {
	world := c.str(pathWorld)
	if world == "" {
		return model.StartKey{}, errors.New("missing world")
	}
	p, err := c.pos("start")
	if err != nil {
		return model.StartKey{}, err
	}
	return model.StartKey{World: world, Pos: p}, nil
}

func (c *command) blocks() ([]voxel.Pos, error) {
	items := pathBlocks.Get(c.obj)
	ret := make([]voxel.Pos, 0, len(items))
	for _, item := range items {
		v, err := toVec(item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, voxel.Floor(v))
	}
	return ret, nil
}
