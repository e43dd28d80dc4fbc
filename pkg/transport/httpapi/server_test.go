package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/leaderboard"
	"github.com/mpapenbr/gaterace-service-go/testsupport/basedata"
	"github.com/mpapenbr/gaterace-service-go/testsupport/memrepo"
)

func setup(t *testing.T) (http.Handler, *model.Track) {
	t.Helper()
	ctx := context.Background()
	repos := memrepo.New()
	track := basedata.SampleTrack()
	require.NoError(t, repos.Track().Create(ctx, track))
	for _, ms := range []int64{5000, 4200} {
		require.NoError(t, repos.Lap().Create(ctx, &model.Lap{
			TrackID: track.ID, ParticipantID: basedata.SampleParticipant, ElapsedMs: ms,
		}))
	}
	names := race.NewNames()
	names.Set(basedata.SampleOwner, "Steve")
	names.Set(basedata.SampleParticipant, "Alex")
	s := NewServer(
		WithTracks(repos.Track()),
		WithBestTimes(leaderboard.New(repos.Lap())),
		WithNames(names),
		WithStats(func() map[string]int { return map[string]int{"racers": 3} }),
	)
	return s.Handler(), track
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	obj, err := oj.Parse(rec.Body.Bytes())
	require.NoError(t, err, rec.Body.String())
	return rec.Code, obj
}

func get(obj any, path string) any {
	return jp.MustParseString(path).First(obj)
}

func TestHealth(t *testing.T) {
	h, _ := setup(t)
	code, obj := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", get(obj, "$.status"))
	assert.Equal(t, int64(3), get(obj, "$.stats.racers"))
}

func TestTracks(t *testing.T) {
	h, track := setup(t)
	code, obj := do(t, h, http.MethodGet, "/v1/tracks", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(track.ID), get(obj, "$[0].id"))
	assert.Equal(t, "simple_track", get(obj, "$[0].name"))
	assert.Equal(t, "Steve", get(obj, "$[0].ownerName"))
	assert.Equal(t, []any{int64(0), int64(0), int64(0)}, get(obj, "$[0].start"))

	_, obj = do(t, h, http.MethodGet, "/v1/tracks?world=nether", "")
	assert.Equal(t, []any{}, obj)
}

func TestBestTimes(t *testing.T) {
	h, track := setup(t)
	code, obj := do(t, h, http.MethodGet, "/v1/tracks/1/besttimes", "")
	require.Equal(t, int32(1), track.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), get(obj, "$[0].rank"))
	assert.Equal(t, "Alex", get(obj, "$[0].name"))
	assert.Equal(t, "4.200", get(obj, "$[0].seconds"))
	assert.Equal(t, "4:20", get(obj, "$[0].formatted"))

	code, _ = do(t, h, http.MethodGet, "/v1/tracks/abc/besttimes", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCheckGate(t *testing.T) {
	h, _ := setup(t)
	body := `{"world": "overworld",
 "layers": ["xxxxx\nxxxxx", "     \nxxxxx", "     \nx   x", "     \nx   x",
            "     \nx   x", "     \nxxxxx"],
 "a": {"x": 1, "y": 1, "z": 1}, "face": "up", "b": {"x": 2, "y": 1, "z": 1}}`
	code, obj := do(t, h, http.MethodPost, "/v1/gates:check", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, get(obj, "$.ok"))
	assert.Equal(t, []any{int64(0), int64(1), int64(1)}, get(obj, "$.origin"))
	assert.Equal(t, []any{int64(4), int64(5), int64(1)}, get(obj, "$.farthest"))

	code, obj = do(t, h, http.MethodPost, "/v1/gates:check",
		`{"layers": ["x"], "a": {"x": 0, "y": 0, "z": 0}, "face": "up", "b": {"x": 1, "y": 0, "z": 0}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, get(obj, "$.ok"))
	assert.Equal(t, "Starting blocks do not have the correct solidity", get(obj, "$.reason"))

	code, obj = do(t, h, http.MethodPost, "/v1/gates:check", `{"world": "overworld"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, get(obj, "$.error"), "no layers")
}
