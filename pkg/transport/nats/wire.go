package nats

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	guuid "github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/ohler55/ojg/oj"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
)

const (
	SubjectFeedback = "grs.feedback"
	SubjectRace     = "grs.race"
	SubjectNotify   = "grs.notify"
	SubjectCommand  = "grs.cmd"
)

type (
	bestTimeMsg struct {
		Participant string `json:"participant"`
		ElapsedMs   int64  `json:"elapsedMs"`
		Seconds     string `json:"seconds"`
		Formatted   string `json:"formatted"`
	}
	gateMsg struct {
		World    string `json:"world"`
		Origin   []int  `json:"origin"`
		Farthest []int  `json:"farthest"`
		Right    []int  `json:"right"`
		Up       []int  `json:"up"`
		RowMin   []int  `json:"rowMin"`
		RowMax   []int  `json:"rowMax"`
	}
	eventMsg struct {
		ID          string        `json:"id"`
		Kind        string        `json:"kind"`
		Scope       string        `json:"scope"`
		Participant string        `json:"participant,omitempty"`
		TrackID     int32         `json:"trackId,omitempty"`
		TrackName   string        `json:"trackName,omitempty"`
		Message     string        `json:"message,omitempty"`
		GateIndex   int           `json:"gateIndex"`
		GateCount   int           `json:"gateCount,omitempty"`
		Timestamp   string        `json:"timestamp,omitempty"`
		ElapsedMs   int64         `json:"elapsedMs,omitempty"`
		Seconds     string        `json:"seconds,omitempty"`
		On          bool          `json:"on"`
		BestTimes   []bestTimeMsg `json:"bestTimes,omitempty"`
		Gates       []gateMsg     `json:"gates,omitempty"`
	}
)

// Subject returns the subject an event is published on.
func Subject(e *event.Event) string {
	switch e.Scope {
	case event.ScopeParticipant:
		return fmt.Sprintf("%s.%s", SubjectFeedback, e.Participant)
	case event.ScopeNotify:
		return fmt.Sprintf("%s.%s", SubjectNotify, e.Kind)
	default:
		return fmt.Sprintf("%s.%s", SubjectRace, e.Kind)
	}
}

// Seconds renders milliseconds as decimal seconds with three places.
func Seconds(millis int64) string {
	return decimal.New(millis, -3).StringFixed(3)
}

func toBestTimeMsgs(times []model.BestTime) []bestTimeMsg {
	ret := make([]bestTimeMsg, len(times))
	for i, bt := range times {
		ret[i] = bestTimeMsg{
			Participant: bt.ParticipantID.String(),
			ElapsedMs:   bt.ElapsedMs,
			Seconds:     Seconds(bt.ElapsedMs),
			Formatted:   race.FormatLapTime(bt.ElapsedMs),
		}
	}
	return ret
}

func toGateMsgs(views []event.GateView) []gateMsg {
	ret := make([]gateMsg, len(views))
	for i := range views {
		v := &views[i]
		ret[i] = gateMsg{
			World:    v.World,
			Origin:   []int{v.Origin.X, v.Origin.Y, v.Origin.Z},
			Farthest: []int{v.Farthest.X, v.Farthest.Y, v.Farthest.Z},
			Right:    []int{v.Right.X, v.Right.Y, v.Right.Z},
			Up:       []int{v.Up.X, v.Up.Y, v.Up.Z},
			RowMin:   v.RowMin,
			RowMax:   v.RowMax,
		}
	}
	return ret
}

func toEventMsg(e *event.Event, id string) *eventMsg {
	msg := &eventMsg{
		ID:        id,
		Kind:      string(e.Kind),
		Scope:     string(e.Scope),
		TrackID:   e.TrackID,
		TrackName: e.TrackName,
		Message:   e.Message,
		GateIndex: e.GateIndex,
		GateCount: e.GateCount,
		ElapsedMs: e.ElapsedMs,
		On:        e.On,
		BestTimes: toBestTimeMsgs(e.BestTimes),
		Gates:     toGateMsgs(e.Gates),
	}
	if e.Participant != uuid.Nil {
		msg.Participant = e.Participant.String()
	}
	if !e.Timestamp.IsZero() {
		msg.Timestamp = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if e.ElapsedMs > 0 {
		msg.Seconds = Seconds(e.ElapsedMs)
	}
	return msg
}

// NewMsg encodes e as a NATS message. Every message gets a unique id
// which is also used for JetStream deduplication.
func NewMsg(e *event.Event) (*nats.Msg, error) {
	id := guuid.NewString()
	data, err := oj.Marshal(toEventMsg(e, id))
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Kind, err)
	}
	msg := nats.NewMsg(Subject(e))
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Data = data
	return msg, nil
}
