// Package session turns movement samples of participants into gate passes
// and lap times.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/trackcache"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

var (
	ErrLoadPending   = errors.New("track load pending")
	ErrLoadCancelled = errors.New("track load cancelled")
	ErrClosed        = errors.New("machine closed")
)

const maxReloads = 2

// LapRecorder persists completed laps.
type LapRecorder interface {
	Record(ctx context.Context, track *model.Track, lap *model.Lap) error
	BestTimes(ctx context.Context, trackID int32) ([]model.BestTime, error)
}

type (
	Option func(*Machine)
	// racer is the state of a participant who is racing a track
	racer struct {
		participant uuid.UUID
		track       *trackcache.LoadedTrack
		next        int
		prev        mgl64.Vec3
		lapStart    omit.Val[time.Time]
	}
	// pending is a participant waiting for a track to be loaded
	pending struct {
		key model.StartKey
		pos mgl64.Vec3
	}
	lapJob struct {
		track *model.Track
		lap   *model.Lap
	}
)

func WithSink(sink event.Sink) Option {
	return func(m *Machine) {
		m.sink = sink
	}
}

func WithNames(names race.NameResolver) Option {
	return func(m *Machine) {
		m.names = names
	}
}

func WithLapRecorder(laps LapRecorder) Option {
	return func(m *Machine) {
		m.laps = laps
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithLapCeiling sets the longest lap in milliseconds that is still recorded.
func WithLapCeiling(millis int64) Option {
	return func(m *Machine) {
		if millis > 0 {
			m.lapCeiling = millis
		}
	}
}

func WithQueueSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

type Machine struct {
	cache      *trackcache.Cache
	laps       LapRecorder
	sink       event.Sink
	names      race.NameResolver
	now        func() time.Time
	lapCeiling int64
	queueSize  int
	log        *log.Logger
	metrics    *machineMetrics

	mu      sync.Mutex
	racers  map[uuid.UUID]*racer
	loading map[uuid.UUID]*pending
	closed  bool

	queue   chan lapJob
	queued  sync.WaitGroup
	workers sync.WaitGroup
}

func New(cache *trackcache.Cache, opts ...Option) *Machine {
	ret := &Machine{
		cache:      cache,
		sink:       event.Discard,
		names:      race.NewNames(),
		now:        time.Now,
		lapCeiling: race.MaxLapMillis,
		queueSize:  1024,
		log:        log.Default().Named("race.session"),
		racers:     make(map[uuid.UUID]*racer),
		loading:    make(map[uuid.UUID]*pending),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.metrics = newMachineMetrics(ret)
	ret.queue = make(chan lapJob, ret.queueSize)
	ret.workers.Add(1)
	go ret.recordLaps()
	return ret
}

// Enter puts participant into racing mode for the track starting at key.
// The track is loaded in the background, the returned channel receives the
// outcome. A participant already racing another track leaves it first.
//
//nolint:whitespace // can't make both editor and linter happy
func (m *Machine) Enter(
	ctx context.Context,
	participant uuid.UUID,
	key model.StartKey,
	pos mgl64.Vec3,
) <-chan error {
	done := make(chan error, 1)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		done <- ErrClosed
		return done
	}
	if _, ok := m.loading[participant]; ok {
		m.mu.Unlock()
		err := race.NewSessionError(ErrLoadPending, "Your track is still loading.")
		m.sink.Emit(event.Error(participant, err.Message))
		done <- err
		return done
	}
	if _, ok := m.racers[participant]; ok {
		m.exitLocked(participant, "")
	}
	p := &pending{key: key, pos: pos}
	m.loading[participant] = p
	m.mu.Unlock()

	go func() {
		done <- m.completeEnter(ctx, participant, p)
	}()
	return done
}

//nolint:whitespace // can't make both editor and linter happy
func (m *Machine) completeEnter(
	ctx context.Context,
	participant uuid.UUID,
	p *pending,
) error {
	var lt *trackcache.LoadedTrack
	var err error
	for attempt := 0; ; attempt++ {
		lt, err = m.cache.Load(ctx, p.key)

		m.mu.Lock()
		if m.loading[participant] != p {
			// the participant left while loading
			m.mu.Unlock()
			if err == nil {
				m.cache.Leave(p.key, participant)
			}
			return ErrLoadCancelled
		}
		if err != nil {
			break
		}
		if joined := m.cache.Join(p.key, participant, lt); joined != nil {
			lt = joined
			break
		}
		// a gate changed after the track was loaded
		if attempt >= maxReloads {
			err = trackcache.ChangedError()
			break
		}
		m.mu.Unlock()
	}
	delete(m.loading, participant)
	if err != nil {
		m.mu.Unlock()
		m.log.Info("could not load track",
			log.Stringer("start", p.key), log.ErrorField(err))
		m.sink.Emit(event.Error(participant, race.UserMessage(err)))
		return err
	}
	m.racers[participant] = &racer{
		participant: participant,
		track:       lt,
		next:        0,
		prev:        p.pos,
	}
	m.mu.Unlock()

	track := lt.Track
	m.sink.Emit(event.Info(participant, fmt.Sprintf("You are racing track '%s'.", track.Name)))
	m.sink.Emit(event.Event{
		Kind: event.KindRaceMode, Scope: event.ScopeAll,
		Participant: participant, TrackID: track.ID, On: true,
	})
	if m.laps != nil {
		if times, err := m.laps.BestTimes(ctx, track.ID); err == nil {
			m.sink.Emit(event.Event{
				Kind: event.KindBestTimes, Scope: event.ScopeParticipant,
				Participant: participant, TrackID: track.ID, BestTimes: times,
			})
		} else {
			m.log.Warn("could not read best times", log.ErrorField(err))
		}
	}
	m.sink.Emit(event.Event{
		Kind: event.KindTrackGates, Scope: event.ScopeParticipant,
		Participant: participant, TrackID: track.ID, TrackName: track.Name,
		GateCount: len(lt.Gates), Gates: event.ViewsOf(lt.Gates),
	})
	return nil
}

// Toggle leaves the track if participant is racing the track of key,
// otherwise the track is entered.
//
//nolint:whitespace // can't make both editor and linter happy
func (m *Machine) Toggle(
	ctx context.Context,
	participant uuid.UUID,
	key model.StartKey,
	pos mgl64.Vec3,
) <-chan error {
	m.mu.Lock()
	if r, ok := m.racers[participant]; ok && r.track.Key() == key {
		m.exitLocked(participant, "")
		m.mu.Unlock()
		done := make(chan error, 1)
		done <- nil
		return done
	}
	m.mu.Unlock()
	return m.Enter(ctx, participant, key, pos)
}

// Sample processes the current position of participant. Returns the index
// of the next gate or -1 if the participant is not racing. While the track
// is loading only the position is kept, racing starts from the latest one.
func (m *Machine) Sample(participant uuid.UUID, world string, pos mgl64.Vec3) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, loading := m.loading[participant]; loading {
		p.pos = pos
		return -1
	}
	r, ok := m.racers[participant]
	if !ok {
		return -1
	}
	gates := r.track.Gates
	for range gates {
		g := gates[r.next]
		if g.World != world {
			break
		}
		res := gate.Test(r.prev, pos, g)
		if !res.Passed {
			break
		}
		r.prev = res.Hit
		passed := r.next
		r.next = (r.next + 1) % len(gates)
		m.gatePassed(r, passed)
	}
	r.prev = pos
	return r.next
}

// gatePassed must be called with the lock held
func (m *Machine) gatePassed(r *racer, passed int) {
	track := r.track.Track
	count := len(r.track.Gates)
	m.sink.Emit(event.Event{
		Kind: event.KindGateIndex, Scope: event.ScopeParticipant,
		Participant: r.participant, TrackID: track.ID,
		GateIndex: r.next, GateCount: count,
	})
	passedMsg := fmt.Sprintf("Passed gate %d of %d.", passed+1, count)
	if passed != 0 {
		m.sink.Emit(event.Info(r.participant, passedMsg))
		return
	}

	now := m.now()
	start, running := r.lapStart.Get()
	r.lapStart.Set(now)
	m.sink.Emit(event.Event{
		Kind: event.KindLapStart, Scope: event.ScopeParticipant,
		Participant: r.participant, TrackID: track.ID, Timestamp: now,
	})
	if !running {
		m.sink.Emit(event.Info(r.participant, passedMsg))
		e := event.Notify(event.KindLapStarted, track.ID,
			fmt.Sprintf("%s started a lap on `%s`", m.names.Name(r.participant), track.Name))
		e.Participant = r.participant
		e.TrackName = track.Name
		e.Timestamp = now
		m.sink.Emit(e)
		return
	}

	elapsed := now.Sub(start).Milliseconds()
	if elapsed > m.lapCeiling {
		m.metrics.discarded.Add(context.Background(), 1)
		m.sink.Emit(event.Error(r.participant, "Lap discarded. Took too long."))
		return
	}
	m.sink.Emit(event.Success(r.participant, "Lap time: "+race.FormatLapTime(elapsed)))
	e := event.Notify(event.KindLapCompleted, track.ID,
		fmt.Sprintf("%s completed a lap on `%s` in %s",
			m.names.Name(r.participant), track.Name, race.FormatLapTime(elapsed)))
	e.Participant = r.participant
	e.TrackName = track.Name
	e.Timestamp = now
	e.ElapsedMs = elapsed
	m.sink.Emit(e)
	m.enqueue(lapJob{
		track: track,
		lap: &model.Lap{
			TrackID:       track.ID,
			ParticipantID: r.participant,
			ElapsedMs:     elapsed,
		},
	})
}

// enqueue must be called with the lock held
func (m *Machine) enqueue(job lapJob) {
	if m.closed || m.laps == nil {
		return
	}
	m.queued.Add(1)
	select {
	case m.queue <- job:
	default:
		m.queued.Done()
		m.log.Error("lap queue full, lap dropped",
			log.Int32("track", job.track.ID),
			log.Stringer("participant", job.lap.ParticipantID),
			log.Int64("elapsed", job.lap.ElapsedMs))
	}
}

func (m *Machine) recordLaps() {
	defer m.workers.Done()
	for job := range m.queue {
		if err := m.laps.Record(context.Background(), job.track, job.lap); err != nil {
			m.log.Error("could not record lap",
				log.Int32("track", job.track.ID),
				log.Stringer("participant", job.lap.ParticipantID),
				log.ErrorField(err))
		} else {
			m.metrics.recorded.Add(context.Background(), 1)
		}
		m.queued.Done()
	}
}

// Flush waits until all queued laps are recorded.
func (m *Machine) Flush() {
	m.queued.Wait()
}

// Close stops accepting laps and waits for the queued ones.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	m.workers.Wait()
}

// Exit removes participant from racing mode. An empty reason is a regular
// leave, otherwise the participant is told why they were kicked out.
// Exiting a participant that is not racing does nothing.
func (m *Machine) Exit(participant uuid.UUID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitLocked(participant, reason)
}

func (m *Machine) exitLocked(participant uuid.UUID, reason string) {
	if _, ok := m.loading[participant]; ok {
		delete(m.loading, participant)
		return
	}
	r, ok := m.racers[participant]
	if !ok {
		return
	}
	delete(m.racers, participant)
	m.cache.Leave(r.track.Key(), participant)
	if reason == "" {
		m.sink.Emit(event.Info(participant, "You left racing mode."))
	} else {
		m.sink.Emit(event.Error(participant,
			"You were kicked out of racing mode because: "+reason))
	}
	m.sink.Emit(event.Event{
		Kind: event.KindRaceMode, Scope: event.ScopeAll,
		Participant: participant, TrackID: r.track.Track.ID, On: false,
	})
}

// ExitAll removes every participant of the track of key.
func (m *Machine) ExitAll(key model.StartKey, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitAllLocked(key, reason)
}

func (m *Machine) exitAllLocked(key model.StartKey, reason string) int {
	n := 0
	for _, p := range m.cache.Participants(key) {
		if _, ok := m.racers[p]; ok {
			m.exitLocked(p, reason)
			n++
		}
	}
	return n
}

// Invalidate kicks out all participants racing a track with a gate whose
// bounding box contains pos and drops these tracks from the cache. Returns
// the number of participants removed.
func (m *Machine) Invalidate(world string, pos voxel.Pos, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, key := range m.cache.MarkChanged(world, pos) {
		n += m.exitAllLocked(key, reason)
		m.cache.Invalidate(context.Background(), key)
	}
	return n
}

// Status describes the race state of a participant.
type Status struct {
	Key       model.StartKey
	TrackID   int32
	NextGate  int
	GateCount int
	LapStart  omit.Val[time.Time]
	Loading   bool
}

// Status returns the state of participant, ok is false if the participant
// is neither racing nor loading a track.
func (m *Machine) Status(participant uuid.UUID) (s Status, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, found := m.loading[participant]; found {
		return Status{Key: p.key, Loading: true}, true
	}
	r, found := m.racers[participant]
	if !found {
		return Status{}, false
	}
	return Status{
		Key:       r.track.Key(),
		TrackID:   r.track.Track.ID,
		NextGate:  r.next,
		GateCount: len(r.track.Gates),
		LapStart:  r.lapStart,
	}, true
}

// Racers returns the number of racing participants.
func (m *Machine) Racers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.racers)
}

// ChangedBy builds the kick reason for a gate that was modified.
func ChangedBy(name string) string {
	if name == "" {
		return "A gate was changed by explosion"
	}
	return "A gate was changed by " + name
}
