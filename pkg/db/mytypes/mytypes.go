package mytypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

// GateData is stored in the jsonb column gate.data.
// It holds everything needed to rebuild the gate geometry.
type GateData struct {
	World string    `json:"world"`
	A     voxel.Pos `json:"a"`
	Face  string    `json:"face"`
	B     voxel.Pos `json:"b"`
}

func GateDataFromDef(def gate.Def) GateData {
	return GateData{World: def.World, A: def.A, Face: def.Face.String(), B: def.B}
}

func (h GateData) ToDef() (gate.Def, error) {
	face, err := voxel.ParseFace(h.Face)
	if err != nil {
		return gate.Def{}, err
	}
	return gate.Def{World: h.World, A: h.A, Face: face, B: h.B}, nil
}

func (h *GateData) Scan(value any) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("value is not []byte")
	}

	return json.Unmarshal(bytes, &h)
}

func (h GateData) Value() (driver.Value, error) {
	return json.Marshal(h)
}
