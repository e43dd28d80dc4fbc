package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
)

func TestSubject(t *testing.T) {
	p := basedata.SampleParticipant
	tests := []struct {
		name  string
		event event.Event
		want  string
	}{
		{"feedback", event.Info(p, "hello"), "grs.feedback." + p.String()},
		{
			"race ui",
			event.Event{Kind: event.KindBestTime, Scope: event.ScopeAll, Participant: p},
			"grs.race.best-time",
		},
		{"notify", event.Notify(event.KindTrackBuilt, 1, "built"), "grs.notify.track-built"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Subject(&tt.event), tt.want)
		})
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, Seconds(4000), "4.000")
	assert.Equal(t, Seconds(61234), "61.234")
	assert.Equal(t, Seconds(5), "0.005")
}

func TestNewMsg(t *testing.T) {
	p := basedata.SampleParticipant
	e := event.Event{
		Kind:        event.KindBestTimes,
		Scope:       event.ScopeParticipant,
		Participant: p,
		TrackID:     3,
		Timestamp:   basedata.TestTime(),
		ElapsedMs:   65430,
		BestTimes:   []model.BestTime{{ParticipantID: p, ElapsedMs: 65430}},
	}
	msg, err := NewMsg(&e)
	assert.NilError(t, err)
	assert.Equal(t, msg.Subject, "grs.feedback."+p.String())

	obj, err := oj.Parse(msg.Data)
	assert.NilError(t, err)
	get := func(path string) any { return jp.MustParseString(path).First(obj) }
	assert.Equal(t, get("$.id"), msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, get("$.kind"), "best-times")
	assert.Equal(t, get("$.participant"), p.String())
	assert.Equal(t, get("$.trackId"), int64(3))
	assert.Equal(t, get("$.seconds"), "65.430")
	assert.Equal(t, get("$.bestTimes[0].formatted"), "1:5:43")
	assert.Equal(t, get("$.bestTimes[0].participant"), p.String())
	assert.Equal(t, get("$.timestamp"), basedata.TestTime().UTC().Format(time.RFC3339Nano))
}

type publishMock struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (m *publishMock) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.err
}

func TestPublisherRun(t *testing.T) {
	mock := &publishMock{}
	p := NewPublisher(mock)
	events := make(chan event.Event, 3)
	events <- event.Info(uuid.Must(uuid.NewV4()), "one")
	events <- event.Notify(event.KindTrackRemoved, 1, "two")
	close(events)
	p.Run(context.Background(), events)

	assert.Equal(t, len(mock.msgs), 2)
	assert.Equal(t, mock.msgs[1].Subject, "grs.notify.track-removed")
	assert.Assert(t, mock.msgs[0].Header.Get(nats.MsgIdHdr) != mock.msgs[1].Header.Get(nats.MsgIdHdr))

	mock.err = errors.New("not connected")
	err := p.Publish(context.Background(), &event.Event{Kind: event.KindInfo})
	assert.ErrorContains(t, err, "not connected")
}
