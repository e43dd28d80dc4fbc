package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

type Lap struct {
	ID            string    `json:"id"`
	TrackID       int32     `json:"trackId"`
	ParticipantID uuid.UUID `json:"participantId"`
	ElapsedMs     int64     `json:"elapsedMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BestTime is the fastest lap of a participant on a track.
type BestTime struct {
	ParticipantID uuid.UUID `json:"participantId"`
	ElapsedMs     int64     `json:"elapsedMs"`
}
