// Package httpapi serves a small read only status API next to the NATS
// transport.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/gate/fixture"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/version"
)

const maxFixtureSize = 1 << 20

type (
	// BestTimes provides the leaderboard of a track.
	BestTimes interface {
		BestTimes(ctx context.Context, trackID int32) ([]model.BestTime, error)
	}
	// Stats are reported by /healthz.
	Stats func() map[string]int

	Server struct {
		addr      string
		tracks    api.TrackRepository
		bestTimes BestTimes
		names     race.NameResolver
		stats     Stats
		l         *log.Logger
	}
	Option func(*Server)

	trackView struct {
		ID        int32  `json:"id"`
		Name      string `json:"name"`
		Owner     string `json:"owner"`
		OwnerName string `json:"ownerName"`
		World     string `json:"world"`
		Start     []int  `json:"start"`
		CreatedAt string `json:"createdAt"`
	}
	bestTimeView struct {
		Rank        int    `json:"rank"`
		Participant string `json:"participant"`
		Name        string `json:"name"`
		ElapsedMs   int64  `json:"elapsedMs"`
		Seconds     string `json:"seconds"`
		Formatted   string `json:"formatted"`
	}
	fixtureResult struct {
		OK         bool   `json:"ok"`
		Origin     []int  `json:"origin,omitempty"`
		Farthest   []int  `json:"farthest,omitempty"`
		Axis       string `json:"axis,omitempty"`
		PathLength int    `json:"pathLength,omitempty"`
		Interior   int    `json:"interior,omitempty"`
		Rows       int    `json:"rows,omitempty"`
		Error      string `json:"error,omitempty"`
		Reason     string `json:"reason,omitempty"`
	}
)

func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithTracks(tracks api.TrackRepository) Option {
	return func(s *Server) {
		s.tracks = tracks
	}
}

func WithBestTimes(b BestTimes) Option {
	return func(s *Server) {
		s.bestTimes = b
	}
}

func WithNames(names race.NameResolver) Option {
	return func(s *Server) {
		s.names = names
	}
}

func WithStats(stats Stats) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		addr:  "localhost:8080",
		names: race.NewNames(),
		stats: func() map[string]int { return map[string]int{} },
		l:     log.Default().Named("transport.http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	if s.tracks != nil {
		mux.HandleFunc("GET /v1/tracks", s.listTracks)
	}
	if s.bestTimes != nil {
		mux.HandleFunc("GET /v1/tracks/{id}/besttimes", s.listBestTimes)
	}
	mux.HandleFunc("POST /v1/gates:check", s.checkGate)
	return mux
}

// Start serves the API until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	//nolint:gosec // by design
	server := &http.Server{
		Addr:    s.addr,
		Handler: h2c.NewHandler(newCORS().Handler(s.Handler()), &http2.Server{}),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("http shutdown", log.ErrorField(err))
		}
	}()
	s.l.Info("Starting http server", log.String("addr", s.addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"stats":   s.stats(),
	})
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.tracks.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if world := r.URL.Query().Get("world"); world != "" {
		tracks = lo.Filter(tracks, func(t *model.Track, _ int) bool {
			return t.Start.World == world
		})
	}
	s.writeJSON(w, http.StatusOK, lo.Map(tracks, func(t *model.Track, _ int) trackView {
		return trackView{
			ID:        t.ID,
			Name:      t.Name,
			Owner:     t.OwnerID.String(),
			OwnerName: s.names.Name(t.OwnerID),
			World:     t.Start.World,
			Start:     []int{t.Start.Pos.X, t.Start.Pos.Y, t.Start.Pos.Z},
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		}
	}))
}

func (s *Server) listBestTimes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	times, err := s.bestTimes.BestTimes(r.Context(), int32(id))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lo.Map(times, func(bt model.BestTime, i int) bestTimeView {
		return bestTimeView{
			Rank:        i + 1,
			Participant: bt.ParticipantID.String(),
			Name:        s.names.Name(bt.ParticipantID),
			ElapsedMs:   bt.ElapsedMs,
			Seconds:     decimal.New(bt.ElapsedMs, -3).StringFixed(3),
			Formatted:   race.FormatLapTime(bt.ElapsedMs),
		}
	}))
}

// checkGate builds the gate of a fixture posted as YAML or JSON.
func (s *Server) checkGate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFixtureSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := fixture.Parse(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_, res, err := f.Build()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	view := fixtureResult{OK: res.OK, Error: res.Error, Reason: res.Reason}
	if res.OK {
		view.Origin = []int{res.Origin.X, res.Origin.Y, res.Origin.Z}
		view.Farthest = []int{res.Farthest.X, res.Farthest.Y, res.Farthest.Z}
		view.Axis = res.Axis
		view.PathLength = res.PathLength
		view.Interior = res.Interior
		view.Rows = res.Rows
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := oj.Marshal(v)
	if err != nil {
		s.l.Error("could not encode response", log.ErrorField(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.l.Debug("could not write response", log.ErrorField(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.l.Debug("request failed", log.Int("status", status), log.ErrorField(err))
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			// Allow all origins, which effectively disables CORS.
			return true
		},
		AllowedHeaders: []string{"*"},
		// Let browsers cache CORS information for longer, which reduces the number
		// of preflight requests. FF caps this value at 24h, and modern Chrome
		// caps it at 2h.
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
