// Package trackcache shares loaded tracks between all participants racing
// them. A track is loaded on first entry and dropped when its last
// participant leaves.
package trackcache

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils/cache"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

type (
	Option func(*Cache)
	entry  struct {
		track        *LoadedTrack
		participants map[uuid.UUID]struct{}
	}
	Stats struct {
		Tracks       int
		Participants int
		Builds       int64
	}
	// change is a block change seen while builds were running
	change struct {
		seq   uint64
		world string
		pos   voxel.Pos
	}
)

// ErrTrackChanged is returned when a gate of the track kept changing while
// the track was loaded.
var ErrTrackChanged = errors.New("track changed while loading")

const maxRebuilds = 2

type Cache struct {
	loader  Loader
	log     *log.Logger
	tracer  trace.Tracer
	mu      sync.Mutex
	entries map[model.StartKey]*entry
	gens    map[model.StartKey]uint64
	group   singleflight.Group
	builds  int64
	buildC  metric.Int64Counter

	seq      uint64
	inflight int
	changes  []change
}

var _ cache.Cache[model.StartKey, LoadedTrack] = (*Cache)(nil)

func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Cache) {
		c.tracer = tracer
	}
}

func New(loader Loader, opts ...Option) *Cache {
	ret := &Cache{
		loader:  loader,
		log:     log.Default().Named("race.cache"),
		entries: make(map[model.StartKey]*entry),
		gens:    make(map[model.StartKey]uint64),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("grs")
	}
	ret.setupMetrics()
	return ret
}

// Load returns the track for key. Concurrent loads of the same key share a
// single build. The loaded track is kept in the cache, callers are expected
// to either Join or Leave afterwards.
func (c *Cache) Load(ctx context.Context, key model.StartKey) (*LoadedTrack, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return e.track, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		// a load must not fail because the requesting participant left
		buildCtx, span := c.tracer.Start(context.WithoutCancel(ctx), "trackcache.load",
			trace.WithAttributes(attribute.String("start", key.String())))
		defer span.End()

		for attempt := 0; ; attempt++ {
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				c.mu.Unlock()
				return e.track, nil
			}
			start, gen := c.seq, c.gens[key]
			c.inflight++
			c.mu.Unlock()

			lt, err := c.loader.Load(buildCtx, key)

			c.mu.Lock()
			c.inflight--
			changed := err == nil && (c.gens[key] != gen || c.changedSince(start, lt))
			if c.inflight == 0 {
				c.changes = nil
			}
			if err != nil {
				c.mu.Unlock()
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			c.builds++
			if c.buildC != nil {
				c.buildC.Add(buildCtx, 1)
			}
			if changed {
				c.mu.Unlock()
				if attempt < maxRebuilds {
					c.log.Debug("track changed while loading, rebuilding",
						log.Stringer("start", key), log.Int("attempt", attempt))
					continue
				}
				span.SetStatus(codes.Error, ErrTrackChanged.Error())
				return nil, ChangedError()
			}
			if e, ok := c.entries[key]; ok {
				c.mu.Unlock()
				return e.track, nil
			}
			lt.gen = c.gens[key]
			c.entries[key] = &entry{track: lt, participants: make(map[uuid.UUID]struct{})}
			c.mu.Unlock()
			return lt, nil
		}
	})
	if err != nil {
		c.log.Debug("load failed",
			log.Stringer("start", key), log.Bool("shared", shared), log.ErrorField(err))
		return nil, err
	}
	return v.(*LoadedTrack), nil
}

// Join registers participant on the track of key. If the entry was dropped
// in the meantime it is recreated from lt. Returns nil if key was
// invalidated after lt was loaded, the caller has to load again.
func (c *Cache) Join(key model.StartKey, participant uuid.UUID, lt *LoadedTrack) *LoadedTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lt.gen != c.gens[key] {
		return nil
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry{track: lt, participants: make(map[uuid.UUID]struct{})}
		c.entries[key] = e
	}
	e.participants[participant] = struct{}{}
	return e.track
}

// Leave removes participant from the track of key and drops the entry when
// nobody is left. Returns true if the entry was dropped.
func (c *Cache) Leave(key model.StartKey, participant uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(e.participants, participant)
	if len(e.participants) == 0 {
		delete(c.entries, key)
		c.log.Debug("track evicted", log.Stringer("start", key))
		return true
	}
	return false
}

// Get returns the cached track without loading it.
func (c *Cache) Get(ctx context.Context, key model.StartKey) (*LoadedTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.track, nil
	}
	return nil, cache.ErrCacheMiss
}

// Invalidate drops the entry of key regardless of its participants. Tracks
// of key loaded before can no longer be joined.
func (c *Cache) Invalidate(ctx context.Context, key model.StartKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

// MarkChanged records a block change at pos. Builds running right now are
// repeated if one of their gates contains pos. Returns the keys of the
// cached tracks having a gate at pos, see KeysWithGateAt.
func (c *Cache) MarkChanged(world string, pos voxel.Pos) []model.StartKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.inflight > 0 {
		c.changes = append(c.changes, change{seq: c.seq, world: world, pos: pos})
	}
	return c.keysWithGateAtLocked(world, pos)
}

// changedSince must be called with the lock held
func (c *Cache) changedSince(seq uint64, lt *LoadedTrack) bool {
	for _, ch := range c.changes {
		if ch.seq > seq && lt.HasGateAt(ch.world, ch.pos) {
			return true
		}
	}
	return false
}

// ChangedError is the error reported when the gates of a track kept
// changing while it was loaded.
func ChangedError() error {
	return race.NewSessionError(ErrTrackChanged,
		"The track was changed while loading. Try again.")
}

// Participants returns the participants of the track of key.
func (c *Cache) Participants(key model.StartKey) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	ret := make([]uuid.UUID, 0, len(e.participants))
	for p := range e.participants {
		ret = append(ret, p)
	}
	slices.SortFunc(ret, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ret
}

// KeysWithGateAt returns the keys of all cached tracks having a gate whose
// bounding box contains pos.
func (c *Cache) KeysWithGateAt(world string, pos voxel.Pos) []model.StartKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keysWithGateAtLocked(world, pos)
}

func (c *Cache) keysWithGateAtLocked(world string, pos voxel.Pos) []model.StartKey {
	ret := []model.StartKey{}
	for key, e := range c.entries {
		if e.track.HasGateAt(world, pos) {
			ret = append(ret, key)
		}
	}
	return ret
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := Stats{Tracks: len(c.entries), Builds: c.builds}
	for _, e := range c.entries {
		ret.Participants += len(e.participants)
	}
	return ret
}

func (c *Cache) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("grs.trackcache")
	var err error
	if c.buildC, err = meter.Int64Counter("grs.trackcache.builds",
		metric.WithDescription("Number of track loads"),
		metric.WithUnit("{count}")); err != nil {
		c.log.Error("failed to register metric", log.ErrorField(err))
	}
	for name, value := range map[string]func(Stats) int{
		"grs.trackcache.tracks":       func(s Stats) int { return s.Tracks },
		"grs.trackcache.participants": func(s Stats) int { return s.Participants },
	} {
		if _, err := meter.Int64ObservableGauge(name,
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(value(c.Stats())))
				return nil
			})); err != nil {
			c.log.Error("failed to register metric",
				log.String("metric", name), log.ErrorField(err))
		}
	}
}
