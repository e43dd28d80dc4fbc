package leaderboard

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/memrepo"
)

type mirrorMock struct {
	puts map[int32][]model.BestTime
	err  error
}

func (m *mirrorMock) PutBestTimes(ctx context.Context, trackID int32, times []model.BestTime) error {
	m.puts[trackID] = times
	return m.err
}

func (m *mirrorMock) DeleteBestTimes(ctx context.Context, trackID int32) error {
	delete(m.puts, trackID)
	return m.err
}

//nolint:funlen // ok for this test code
func TestRecord(t *testing.T) {
	ctx := context.Background()
	repos := memrepo.New()
	track := basedata.SampleTrack()
	require.NoError(t, repos.Track().Create(ctx, track))

	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	names := race.NewNames()
	names.Set(alice, "Alice")
	names.Set(bob, "Bob")
	rec := &event.Recorder{}
	mirror := &mirrorMock{puts: map[int32][]model.BestTime{}, err: errors.New("kv down")}
	b := New(repos.Lap(), WithSink(rec), WithNames(names), WithMirror(mirror), WithLimit(5))

	tests := []struct {
		name       string
		who        uuid.UUID
		elapsed    int64
		wantBest   int64
		wantLeader []string
	}{
		{"first lap", alice, 12000, 12000, []string{":first_place: Alice took the lead!"}},
		{"bob leads", bob, 11000, 11000, []string{":first_place: Bob took the lead from Alice!"}},
		{"slower lap", alice, 13000, 12000, []string{}},
		{"bob again", bob, 10500, 10500, []string{}},
		{"alice back", alice, 10000, 10000, []string{":first_place: Alice took the lead from Bob!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Reset()
			lap := &model.Lap{ParticipantID: tt.who, ElapsedMs: tt.elapsed}
			require.NoError(t, b.Record(ctx, track, lap))
			assert.Equal(t, track.ID, lap.TrackID)

			best := rec.Kind(event.KindBestTime)
			require.Len(t, best, 1)
			assert.Equal(t, tt.who, best[0].Participant)
			assert.Equal(t, tt.wantBest, best[0].ElapsedMs)
			assert.Equal(t, event.ScopeAll, best[0].Scope)
			assert.Equal(t, tt.wantLeader, rec.Notifications())
		})
	}

	got, err := b.BestTimes(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.BestTime{
		{ParticipantID: alice, ElapsedMs: 10000},
		{ParticipantID: bob, ElapsedMs: 10500},
	}, got)
	assert.Equal(t, got, mirror.puts[track.ID])

	b.Forget(ctx, track.ID)
	assert.NotContains(t, mirror.puts, track.ID)
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	repos := memrepo.New()
	track := basedata.SampleTrack()
	require.NoError(t, repos.Track().Create(ctx, track))
	repos.FailLapCreate = errors.New("db down")
	rec := &event.Recorder{}
	b := New(repos.Lap(), WithSink(rec))

	err := b.Record(ctx, track, &model.Lap{ParticipantID: basedata.SampleParticipant, ElapsedMs: 1})
	assert.ErrorIs(t, err, repos.FailLapCreate)
	assert.Empty(t, rec.Events())
}
