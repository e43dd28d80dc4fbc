// Package build lets participants mark the gates of a new track and store
// it once complete.
package build

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
	"github.com/mpapenbr/gaterace-service-go/pkg/repository/api"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

const (
	DefaultMaxGates = 150
	maxNameLength   = 32767
)

// Racing is the part of the session machine needed when a track is removed.
type Racing interface {
	Exit(participant uuid.UUID, reason string)
	ExitAll(key model.StartKey, reason string) int
}

// Forgetter drops cached data of a removed track.
type Forgetter interface {
	Forget(ctx context.Context, trackID int32)
}

type (
	Option func(*Builder)
	state  struct {
		start   model.StartKey
		name    string
		gates   []*gate.Record
		choices []*gate.Record
	}
)

func WithSink(sink event.Sink) Option {
	return func(b *Builder) {
		b.sink = sink
	}
}

func WithNames(names race.NameResolver) Option {
	return func(b *Builder) {
		b.names = names
	}
}

func WithRacing(r Racing) Option {
	return func(b *Builder) {
		b.racing = r
	}
}

func WithForgetter(f Forgetter) Option {
	return func(b *Builder) {
		b.forget = f
	}
}

func WithMaxGates(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxGates = n
		}
	}
}

func WithGateOptions(opts ...gate.Option) Option {
	return func(b *Builder) {
		b.gateOpts = opts
	}
}

func WithTxManager(tx api.TransactionManager) Option {
	return func(b *Builder) {
		b.tx = tx
	}
}

type Builder struct {
	repos    api.Repositories
	tx       api.TransactionManager
	oracle   voxel.Oracle
	sink     event.Sink
	names    race.NameResolver
	racing   Racing
	forget   Forgetter
	maxGates int
	gateOpts []gate.Option
	log      *log.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	builds map[uuid.UUID]*state
}

func New(repos api.Repositories, oracle voxel.Oracle, opts ...Option) *Builder {
	ret := &Builder{
		repos:    repos,
		oracle:   oracle,
		sink:     event.Discard,
		names:    race.NewNames(),
		maxGates: DefaultMaxGates,
		log:      log.Default().Named("race.build"),
		tracer:   otel.Tracer("grs"),
		builds:   make(map[uuid.UUID]*state),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tx == nil {
		ret.tx = noTx{}
	}
	return ret
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Start puts participant into building mode for a track starting at key.
// Returns false if the participant is already building.
func (b *Builder) Start(participant uuid.UUID, key model.StartKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.builds[participant]; ok {
		return false
	}
	b.builds[participant] = &state{start: key}
	b.sink.Emit(event.Info(participant,
		"You are now building a track. Right click blocks with stick to mark gates."))
	b.sink.Emit(event.Event{
		Kind: event.KindBuildMode, Scope: event.ScopeParticipant,
		Participant: participant, On: true,
	})
	return true
}

// Exit leaves building mode, all marked gates are dropped.
func (b *Builder) Exit(participant uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exitLocked(participant)
}

func (b *Builder) exitLocked(participant uuid.UUID) {
	delete(b.builds, participant)
	b.sink.Emit(event.Info(participant, "You are no longer building a track."))
	b.sink.Emit(event.Event{
		Kind: event.KindBuildMode, Scope: event.ScopeParticipant,
		Participant: participant, On: false,
	})
}

// Building returns the start of the track participant is building.
func (b *Builder) Building(participant uuid.UUID) (model.StartKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.builds[participant]; ok {
		return s.start, true
	}
	return model.StartKey{}, false
}

// GateCount returns the number of gates marked so far.
func (b *Builder) GateCount(participant uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.builds[participant]; ok {
		return len(s.gates)
	}
	return 0
}

// SanitizeName removes everything but printable ASCII without space and
// backslash.
func SanitizeName(name string) string {
	ret := strings.Map(func(r rune) rune {
		if r < '!' || r > '~' || r == '\\' {
			return -1
		}
		return r
	}, name)
	if len(ret) > maxNameLength {
		ret = ret[:maxNameLength]
	}
	return ret
}

func (b *Builder) SetName(ctx context.Context, participant uuid.UUID, name string) error {
	if name == "" {
		return b.fail(participant, race.ErrBlankName, "Track name cannot be blank.")
	}
	if SanitizeName(name) != name {
		return b.fail(participant, race.ErrInvalidName,
			"Track name can only contain standard keyboard characters. "+
				"Space and backslash are not allowed.")
	}
	_, err := b.repos.Track().LoadByName(ctx, name)
	switch {
	case err == nil:
		return b.fail(participant, race.ErrNameTaken, "That name is already taken.")
	case !errors.Is(err, api.ErrNoRows):
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.builds[participant]
	if !ok {
		return b.fail(participant, race.ErrNotBuilding, "You are not building a track.")
	}
	s.name = name
	b.sink.Emit(event.Info(participant, fmt.Sprintf("Track name set to '%s'.", name)))
	return nil
}

// AddBlock handles a click on a block while building. Clicking the start
// block completes the track, any other block marks a gate.
//
//nolint:funlen,cyclop,whitespace // by design
func (b *Builder) AddBlock(
	ctx context.Context,
	participant uuid.UUID,
	world string,
	pos voxel.Pos,
	face voxel.Face,
) error {
	b.mu.Lock()
	s, ok := b.builds[participant]
	if !ok {
		b.mu.Unlock()
		return b.fail(participant, race.ErrNotBuilding, "You are not building a track.")
	}
	if s.start == (model.StartKey{World: world, Pos: pos}) {
		b.mu.Unlock()
		return b.Complete(ctx, participant)
	}
	defer b.mu.Unlock()

	if len(s.gates) >= b.maxGates {
		return b.fail(participant, race.ErrMaxGates,
			fmt.Sprintf("The max number of gates has been reached (%d).", b.maxGates))
	}
	if !b.oracle.IsSolid(world, pos) {
		return b.fail(participant, race.ErrNotSolid, "Gate block must be solid.")
	}

	if len(s.choices) == 2 {
		on0, on1 := s.choices[0].OnPath(pos), s.choices[1].OnPath(pos)
		choices := s.choices
		s.choices = nil
		switch {
		case on0 && !on1:
			b.added(s, participant, choices[0])
		case on1 && !on0:
			b.added(s, participant, choices[1])
		default:
			return b.fail(participant, race.ErrUnresolved,
				"The block you chose does not specify which gate you want to add.")
		}
		return nil
	}

	neighbors := gate.FindSolidNeighbors(world, pos, face, b.oracle)
	recs := make([]*gate.Record, len(neighbors))
	errs := make([]error, len(neighbors))
	for i, n := range neighbors {
		recs[i], errs[i] = gate.Build(
			gate.Def{World: world, A: pos, Face: face, B: n}, b.oracle, b.gateOpts...)
		if errs[i] != nil {
			b.log.Debug("candidate rejected",
				log.Stringer("a", pos), log.Stringer("b", n), log.ErrorField(errs[i]))
		}
	}

	switch len(neighbors) {
	case 0:
		return b.fail(participant, race.ErrNoGate,
			"Either you selected the wrong face, or this is not a gate.")
	case 1:
		if errs[0] != nil {
			return b.fail(participant, errs[0],
				"Failed to add a gate. "+gate.UserReason(errs[0]))
		}
		b.added(s, participant, recs[0])
		return nil
	}

	switch {
	case errs[0] == nil && errs[1] == nil:
		s.choices = recs
		return b.fail(participant, race.ErrAmbiguousGate,
			"Two possible gates were found. "+
				"Choose another block to specify which one you want to add.")
	case errs[0] == nil:
		b.added(s, participant, recs[0])
	case errs[1] == nil:
		b.added(s, participant, recs[1])
	default:
		return b.fail(participant, errors.Join(race.ErrGateFailed, errs[0], errs[1]),
			"Failed to add a gate. "+eitherReason(errs[0], errs[1]))
	}
	return nil
}

func eitherReason(e1, e2 error) string {
	r1, r2 := gate.UserReason(e1), gate.UserReason(e2)
	switch {
	case r1 != "" && r2 != "":
		return "Either: " + r1 + " OR " + r2
	case r1 != "":
		return r1
	default:
		return r2
	}
}

// added must be called with the lock held
func (b *Builder) added(s *state, participant uuid.UUID, rec *gate.Record) {
	s.gates = append(s.gates, rec)
	b.sink.Emit(event.Success(participant, "Gate successfully added."))
	b.sink.Emit(event.Event{
		Kind: event.KindGatePreview, Scope: event.ScopeParticipant,
		Participant: participant, GateIndex: len(s.gates) - 1,
		GateCount: len(s.gates), Gates: []event.GateView{event.ViewOf(rec)},
	})
}

// Complete stores the track being built by participant. Building mode is
// left before the track is stored.
func (b *Builder) Complete(ctx context.Context, participant uuid.UUID) error {
	ctx, span := b.tracer.Start(ctx, "build.complete")
	defer span.End()

	b.mu.Lock()
	s, ok := b.builds[participant]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	if len(s.gates) < 2 {
		b.mu.Unlock()
		return b.fail(participant, race.ErrTooFewGates,
			"The track must contain at least 2 gates.")
	}
	if s.name == "" {
		b.mu.Unlock()
		return b.fail(participant, race.ErrUnnamed,
			"The track is unnamed. Set it using /race setName <name>.")
	}
	b.exitLocked(participant)
	b.mu.Unlock()

	track := &model.Track{OwnerID: participant, Name: s.name, Start: s.start}
	err := b.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := b.repos.Track().LoadByStart(ctx, s.start)
		switch {
		case err == nil:
			return race.NewSessionError(race.ErrTrackExists,
				"A track already exists at this position. "+s.start.Pos.String())
		case !errors.Is(err, api.ErrNoRows):
			return err
		}
		if err := b.repos.Track().Create(ctx, track); err != nil {
			return err
		}
		gates := make([]model.Gate, len(s.gates))
		for i, rec := range s.gates {
			gates[i] = model.GateFromRecord(i, rec)
		}
		return b.repos.Gate().Create(ctx, track.ID, gates)
	})
	if err != nil {
		b.log.Error("could not store track",
			log.String("name", s.name), log.ErrorField(err))
		b.sink.Emit(event.Error(participant, race.UserMessage(err)))
		return err
	}

	b.log.Info("track built",
		log.Int32("id", track.ID), log.String("name", track.Name),
		log.Stringer("start", track.Start), log.Int("gates", len(s.gates)))
	b.sink.Emit(event.Success(participant,
		fmt.Sprintf("Track '%s' successfully built!", track.Name)))
	e := event.Notify(event.KindTrackBuilt, track.ID,
		fmt.Sprintf(":checkered_flag: %s built a track!", b.names.Name(participant)))
	e.Participant = participant
	e.TrackName = track.Name
	e.GateCount = len(s.gates)
	b.sink.Emit(e)
	return nil
}

// RemoveTrack soft deletes the track starting at key. Everybody racing it
// is kicked out. Nothing happens if there is no track at key.
//
//nolint:whitespace // can't make both editor and linter happy
func (b *Builder) RemoveTrack(
	ctx context.Context,
	remover uuid.UUID,
	key model.StartKey,
) error {
	ctx, span := b.tracer.Start(ctx, "build.remove")
	defer span.End()

	b.mu.Lock()
	if s, ok := b.builds[remover]; ok && s.start == key {
		b.exitLocked(remover)
	}
	b.mu.Unlock()

	track, err := b.repos.Track().LoadByStart(ctx, key)
	if errors.Is(err, api.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := b.repos.Track().SoftDelete(ctx, track.ID); err != nil {
			return err
		}
		_, err := b.repos.Gate().SoftDeleteByTrackID(ctx, track.ID)
		return err
	}); err != nil {
		return err
	}
	if b.forget != nil {
		b.forget.Forget(ctx, track.ID)
	}

	name := b.names.Name(remover)
	if b.racing != nil {
		b.racing.Exit(remover, "")
		b.racing.ExitAll(key, "The track starting point was removed by "+name)
	}
	e := event.Notify(event.KindTrackRemoved, track.ID,
		fmt.Sprintf(":x: %s deleted the track `%s`!\nLocation: (%d, %d, %d)",
			name, track.Name, key.Pos.X, key.Pos.Y, key.Pos.Z))
	e.Participant = remover
	e.TrackName = track.Name
	b.sink.Emit(e)
	if remover == track.OwnerID {
		b.sink.Emit(event.Success(remover,
			fmt.Sprintf("Your track '%s' was removed.", track.Name)))
	}
	return nil
}

// fail tells participant what went wrong and returns the matching error.
func (b *Builder) fail(participant uuid.UUID, cause error, msg string) error {
	b.sink.Emit(event.Error(participant, msg))
	return race.NewSessionError(cause, msg)
}
