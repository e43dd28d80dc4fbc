package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/event"
)

type (
	// MsgPublisher is the part of *nats.Conn the publisher needs.
	MsgPublisher interface {
		PublishMsg(m *nats.Msg) error
	}
	Publisher struct {
		conn         MsgPublisher
		l            *log.Logger
		printMessage bool
		published    metric.Int64Counter
	}
	PublisherOption func(*Publisher)
)

func WithPublisherLogger(l *log.Logger) PublisherOption {
	return func(p *Publisher) {
		p.l = l
	}
}

// WithPrintMessage logs each payload on debug level.
func WithPrintMessage(b bool) PublisherOption {
	return func(p *Publisher) {
		p.printMessage = b
	}
}

func NewPublisher(conn MsgPublisher, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		conn: conn,
		l:    log.Default().Named("transport.nats"),
	}
	for _, opt := range opts {
		opt(p)
	}
	var err error
	p.published, err = otel.GetMeterProvider().Meter("grs.transport").Int64Counter(
		"grs.nats.published",
		metric.WithDescription("Number of events published to NATS"),
		metric.WithUnit("{count}"))
	if err != nil {
		p.l.Warn("failed to register metric", log.ErrorField(err))
	}
	return p
}

// Publish sends a single event. Failures are logged and returned.
func (p *Publisher) Publish(ctx context.Context, e *event.Event) error {
	msg, err := NewMsg(e)
	if err != nil {
		p.l.Error("could not encode event", log.ErrorField(err))
		return err
	}
	if p.printMessage {
		p.l.Debug("publish",
			log.String("subject", msg.Subject), log.ByteString("data", msg.Data))
	}
	err = p.conn.PublishMsg(msg)
	if p.published != nil {
		p.published.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", string(e.Scope)),
			attribute.Bool("ok", err == nil)))
	}
	if err != nil {
		p.l.Warn("could not publish event",
			log.String("subject", msg.Subject), log.ErrorField(err))
	}
	return err
}

// Run publishes every event received from events until the channel is
// closed or ctx is done.
func (p *Publisher) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				p.l.Debug("event channel closed")
				return
			}
			//nolint:errcheck // logged by Publish
			p.Publish(ctx, &e)
		}
	}
}
