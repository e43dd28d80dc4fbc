package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

// StartKey identifies a track by the block racers click to enter it.
type StartKey struct {
	World string    `json:"world"`
	Pos   voxel.Pos `json:"pos"`
}

func (k StartKey) String() string {
	return k.World + " " + k.Pos.String()
}

type Track struct {
	ID        int32     `json:"id"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Name      string    `json:"name"`
	Start     StartKey  `json:"start"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Gate is the persisted part of a gate. The remaining geometry is rebuilt
// from Def whenever a track is loaded.
type Gate struct {
	ID       int32     `json:"id"`
	TrackID  int32     `json:"trackId"`
	Index    int       `json:"index"`
	Def      gate.Def  `json:"def"`
	Origin   voxel.Pos `json:"origin"`
	Farthest voxel.Pos `json:"farthest"`
}

// GateFromRecord extracts the persisted part of a built gate.
func GateFromRecord(idx int, rec *gate.Record) Gate {
	return Gate{Index: idx, Def: rec.Def, Origin: rec.Origin, Farthest: rec.Farthest}
}
