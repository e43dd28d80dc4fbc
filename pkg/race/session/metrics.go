package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/gaterace-service-go/log"
)

type machineMetrics struct {
	recorded  metric.Int64Counter
	discarded metric.Int64Counter
}

func newMachineMetrics(m *Machine) *machineMetrics {
	meter := otel.GetMeterProvider().Meter("grs.session")
	ret := &machineMetrics{
		recorded:  noop.Int64Counter{},
		discarded: noop.Int64Counter{},
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			m.log.Error("failed to register metric",
				log.String("metric", name), log.ErrorField(err))
			return noop.Int64Counter{}
		}
		return c
	}
	ret.recorded = counter("grs.session.laps.recorded", "Number of recorded laps")
	ret.discarded = counter("grs.session.laps.discarded", "Number of laps above the ceiling")
	if _, err := meter.Int64ObservableGauge("grs.session.racers",
		metric.WithDescription("Number of racing participants"),
		metric.WithUnit("{count}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(m.Racers()))
			return nil
		})); err != nil {
		m.log.Error("failed to register metric", log.ErrorField(err))
	}
	return ret
}
