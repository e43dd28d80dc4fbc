package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"github.com/ohler55/ojg/oj"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/build"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/session"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils"
	"github.com/mpapenbr/gaterace-service-go/pkg/voxel"
)

// Commands, the subject is grs.cmd.<op>
const (
	OpName        = "name"
	OpLeave       = "leave"
	OpEnter       = "race.enter"
	OpToggle      = "race.toggle"
	OpExit        = "race.exit"
	OpSample      = "race.sample"
	OpStatus      = "race.status"
	OpBuildStart  = "build.start"
	OpBuildExit   = "build.exit"
	OpBuildName   = "build.name"
	OpBuildBlock  = "build.block"
	OpTrackRemove = "track.remove"
	OpBlockChange = "world.block"
	OpWorldLoad   = "world.load"
	OpChunkUnload = "world.unload"
)

var ErrUnknownCommand = errors.New("unknown command")

// Reply is sent back to the requester of a command.
type Reply map[string]any

func okReply() Reply { return Reply{"ok": true} }

func errReply(err error) Reply {
	msg := race.UserMessage(err)
	if msg == "" {
		msg = err.Error()
	}
	return Reply{"ok": false, "error": msg}
}

type (
	Dispatcher struct {
		machine      *session.Machine
		builder      *build.Builder
		world        *voxel.World
		names        *race.Names
		minVersion   string
		enterTimeout time.Duration
		l            *log.Logger
		tracer       trace.Tracer
	}
	DispatcherOption func(*Dispatcher)
)

// WithMinClientVersion rejects commands of clients below version.
func WithMinClientVersion(version string) DispatcherOption {
	return func(d *Dispatcher) {
		d.minVersion = version
	}
}

// WithEnterTimeout limits how long an enter command waits for the track.
func WithEnterTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.enterTimeout = timeout
	}
}

func WithDispatcherLogger(l *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.l = l
	}
}

//nolint:whitespace // can't make both editor and linter happy
func NewDispatcher(
	machine *session.Machine,
	builder *build.Builder,
	world *voxel.World,
	names *race.Names,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		machine:      machine,
		builder:      builder,
		world:        world,
		names:        names,
		minVersion:   utils.RequiredClientVersion,
		enterTimeout: 30 * time.Second,
		l:            log.Default().Named("transport.cmd"),
		tracer:       otel.Tracer("grs"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe handles all commands received on grs.cmd.>
func (d *Dispatcher) Subscribe(conn *nats.Conn) (*nats.Subscription, error) {
	return conn.Subscribe(SubjectCommand+".>", d.handleMsg)
}

func (d *Dispatcher) handleMsg(msg *nats.Msg) {
	op := strings.TrimPrefix(msg.Subject, SubjectCommand+".")
	respond := func(reply Reply) {
		if msg.Reply == "" {
			return
		}
		data, err := oj.Marshal(reply)
		if err == nil {
			err = msg.Respond(data)
		}
		if err != nil {
			d.l.Warn("could not send reply", log.String("op", op), log.ErrorField(err))
		}
	}
	// entering may have to wait for a track build. Everything else is
	// handled in order of arrival.
	if op == OpEnter || op == OpToggle {
		go func() { respond(d.Handle(context.Background(), op, msg.Data)) }()
		return
	}
	respond(d.Handle(context.Background(), op, msg.Data))
}

// Handle executes a single command.
func (d *Dispatcher) Handle(ctx context.Context, op string, data []byte) Reply {
	ctx, span := d.tracer.Start(ctx, "cmd."+op,
		trace.WithAttributes(attribute.String("op", op)))
	defer span.End()

	cmd, err := parseCommand(data)
	if err != nil {
		return errReply(err)
	}
	if v := cmd.str(pathVersion); !utils.CheckClientVersion(v, d.minVersion) {
		return errReply(fmt.Errorf("client version %q not supported, need at least %s",
			v, d.minVersion))
	}
	reply, err := d.dispatch(ctx, op, cmd)
	if err != nil {
		d.l.Debug("command failed", log.String("op", op), log.ErrorField(err))
		return errReply(err)
	}
	return reply
}

//nolint:cyclop,funlen // by design
func (d *Dispatcher) dispatch(ctx context.Context, op string, cmd *command) (Reply, error) {
	switch op {
	case OpBlockChange:
		return d.blockChange(cmd)
	case OpWorldLoad:
		blocks, err := cmd.blocks()
		if err != nil {
			return nil, err
		}
		d.world.SetAll(cmd.str(pathWorld), blocks)
		return Reply{"ok": true, "count": len(blocks)}, nil
	case OpChunkUnload:
		p, err := cmd.pos("pos")
		if err != nil {
			return nil, err
		}
		d.world.UnloadChunk(cmd.str(pathWorld), p)
		return okReply(), nil
	}

	participant, err := cmd.participant()
	if err != nil {
		return nil, err
	}
	if name := cmd.str(pathName); name != "" {
		d.names.Set(participant, name)
	}

	switch op {
	case OpName:
		return okReply(), nil
	case OpLeave:
		d.machine.Exit(participant, "")
		if _, building := d.builder.Building(participant); building {
			d.builder.Exit(participant)
		}
		d.names.Set(participant, "")
		return okReply(), nil
	case OpEnter, OpToggle:
		return d.enter(ctx, op, participant, cmd)
	case OpExit:
		d.machine.Exit(participant, "")
		return okReply(), nil
	case OpSample:
		pos, err := cmd.vec("pos")
		if err != nil {
			return nil, err
		}
		next := d.machine.Sample(participant, cmd.str(pathWorld), pos)
		return Reply{"ok": true, "racing": next >= 0, "nextGate": next}, nil
	case OpStatus:
		return d.status(participant), nil
	case OpBuildStart:
		key, err := cmd.start()
		if err != nil {
			return nil, err
		}
		return Reply{"ok": true, "started": d.builder.Start(participant, key)}, nil
	case OpBuildExit:
		d.builder.Exit(participant)
		return okReply(), nil
	case OpBuildName:
		return okReply(), d.builder.SetName(ctx, participant, cmd.str(pathTrackName))
	case OpBuildBlock:
		p, err := cmd.pos("pos")
		if err != nil {
			return nil, err
		}
		face, err := voxel.ParseFace(cmd.str(pathFace))
		if err != nil {
			return nil, err
		}
		err = d.builder.AddBlock(ctx, participant, cmd.str(pathWorld), p, face)
		return Reply{"ok": err == nil, "gates": d.builder.GateCount(participant)}, err
	case OpTrackRemove:
		key, err := cmd.start()
		if err != nil {
			return nil, err
		}
		return okReply(), d.builder.RemoveTrack(ctx, participant, key)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, op)
}

//nolint:whitespace // can't make both editor and linter happy
func (d *Dispatcher) enter(
	ctx context.Context,
	op string,
	participant uuid.UUID,
	cmd *command,
) (Reply, error) {
	key, err := cmd.start()
	if err != nil {
		return nil, err
	}
	pos, err := cmd.vec("pos")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, d.enterTimeout)
	defer cancel()
	var done <-chan error
	if op == OpToggle {
		done = d.machine.Toggle(ctx, participant, key, pos)
	} else {
		done = d.machine.Enter(ctx, participant, key, pos)
	}
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	_, racing := d.machine.Status(participant)
	return Reply{"ok": true, "racing": racing}, nil
}

func (d *Dispatcher) status(participant uuid.UUID) Reply {
	s, ok := d.machine.Status(participant)
	if !ok {
		return Reply{"ok": true, "racing": false}
	}
	reply := Reply{
		"ok":        true,
		"racing":    !s.Loading,
		"loading":   s.Loading,
		"world":     s.Key.World,
		"start":     []int{s.Key.Pos.X, s.Key.Pos.Y, s.Key.Pos.Z},
		"trackId":   int64(s.TrackID),
		"nextGate":  s.NextGate,
		"gateCount": s.GateCount,
	}
	if start, ok := s.LapStart.Get(); ok {
		reply["lapStart"] = start.UTC().Format(time.RFC3339Nano)
	}
	return reply
}

// blockChange mirrors a block update of the host. Changing a block inside
// a gate kicks the racers of the tracks using it.
func (d *Dispatcher) blockChange(cmd *command) (Reply, error) {
	world := cmd.str(pathWorld)
	p, err := cmd.pos("pos")
	if err != nil {
		return nil, err
	}
	if !d.world.Set(world, p, cmd.flag(pathSolid)) {
		return Reply{"ok": true, "changed": false, "kicked": 0}, nil
	}
	n := d.machine.Invalidate(world, p, session.ChangedBy(cmd.str(pathChangedBy)))
	if n > 0 {
		d.l.Info("gate changed",
			log.String("world", world), log.Stringer("pos", p), log.Int("kicked", n))
	}
	return Reply{"ok": true, "changed": true, "kicked": n}, nil
}
