// Package event contains the messages the race core sends to participants
// and to the outside world.
package event

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

type (
	Kind  string
	Scope string
)

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"

	KindGateIndex   Kind = "gate-index"
	KindLapStart    Kind = "lap-start"
	KindBestTime    Kind = "best-time"
	KindBestTimes   Kind = "best-times"
	KindTrackGates  Kind = "track-gates"
	KindRaceMode    Kind = "race-mode"
	KindBuildMode   Kind = "build-mode"
	KindGatePreview Kind = "gate-preview"

	KindLapStarted   Kind = "lap-started"
	KindLapCompleted Kind = "lap-completed"
	KindNewLeader    Kind = "new-leader"
	KindTrackBuilt   Kind = "track-built"
	KindTrackRemoved Kind = "track-removed"
)

const (
	// ScopeParticipant events are only delivered to Event.Participant
	ScopeParticipant Scope = "participant"
	// ScopeAll events update the race UI of every connected client
	ScopeAll Scope = "all"
	// ScopeNotify events go to the outbound notification channel
	ScopeNotify Scope = "notify"
)

type Event struct {
	Kind        Kind             `json:"kind"`
	Scope       Scope            `json:"scope"`
	Participant uuid.UUID        `json:"participant"`
	TrackID     int32            `json:"trackId,omitempty"`
	TrackName   string           `json:"trackName,omitempty"`
	Message     string           `json:"message,omitempty"`
	GateIndex   int              `json:"gateIndex"`
	GateCount   int              `json:"gateCount,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	ElapsedMs   int64            `json:"elapsedMs,omitempty"`
	On          bool             `json:"on"`
	BestTimes   []model.BestTime `json:"bestTimes,omitempty"`
	Gates       []GateView       `json:"gates,omitempty"`
}

// GateView is what clients need to render a gate.
type GateView struct {
	World    string    `json:"world"`
	Origin   voxel.Pos `json:"origin"`
	Farthest voxel.Pos `json:"farthest"`
	RowMin   []int     `json:"rowMin"`
	RowMax   []int     `json:"rowMax"`
	Right    voxel.Pos `json:"right"`
	Up       voxel.Pos `json:"up"`
}

func ViewOf(rec *gate.Record) GateView {
	return GateView{
		World:    rec.World,
		Origin:   rec.Origin,
		Farthest: rec.Farthest,
		RowMin:   rec.RowMin,
		RowMax:   rec.RowMax,
		Right:    rec.Right,
		Up:       rec.Up,
	}
}

func ViewsOf(recs []*gate.Record) []GateView {
	ret := make([]GateView, len(recs))
	for i, rec := range recs {
		ret[i] = ViewOf(rec)
	}
	return ret
}

// IsText reports whether the event is a plain chat message.
func (e Event) IsText() bool {
	return e.Kind == KindInfo || e.Kind == KindSuccess || e.Kind == KindError
}

func Info(participant uuid.UUID, msg string) Event {
	return text(KindInfo, participant, msg)
}

func Success(participant uuid.UUID, msg string) Event {
	return text(KindSuccess, participant, msg)
}

func Error(participant uuid.UUID, msg string) Event {
	return text(KindError, participant, msg)
}

func text(kind Kind, participant uuid.UUID, msg string) Event {
	return Event{Kind: kind, Scope: ScopeParticipant, Participant: participant, Message: msg}
}

// Notify creates an event for the notification channel.
func Notify(kind Kind, trackID int32, msg string) Event {
	return Event{Kind: kind, Scope: ScopeNotify, TrackID: trackID, Message: msg}
}
