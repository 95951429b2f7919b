package heartwolf

// OpenTelemetry instruments for the acquisition loop.  A nil *Metrics is
// valid and records nothing, so the signal chain never has to check.

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/doismellburning/heartwolf"

type Metrics struct {
	FramesDecoded metric.Int64Counter
	FrameErrors   metric.Int64Counter
	NotReady      metric.Int64Counter
	LeadOff       metric.Int64Counter
	PacketsSent   metric.Int64Counter
	SinkDrops     metric.Int64Counter

	heartRate  atomic.Int64 // Read from the exporter's goroutine.
	breathRate atomic.Int64
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	var m = mp.Meter(meterName)
	var met = &Metrics{}
	var err error

	if met.FramesDecoded, err = m.Int64Counter("heartwolf.frames.decoded",
		metric.WithDescription("Frames read from the AFE and decoded."),
	); err != nil {
		return nil, err
	}
	if met.FrameErrors, err = m.Int64Counter("heartwolf.frames.errors",
		metric.WithDescription("Frames rejected or failed reads."),
	); err != nil {
		return nil, err
	}
	if met.NotReady, err = m.Int64Counter("heartwolf.polls.not_ready",
		metric.WithDescription("Polls where DRDY was not asserted."),
	); err != nil {
		return nil, err
	}
	if met.LeadOff, err = m.Int64Counter("heartwolf.samples.lead_off",
		metric.WithDescription("Samples decoded with a lead-off flag set."),
	); err != nil {
		return nil, err
	}
	if met.PacketsSent, err = m.Int64Counter("heartwolf.packets.sent",
		metric.WithDescription("Result packets written to a sink."),
	); err != nil {
		return nil, err
	}
	if met.SinkDrops, err = m.Int64Counter("heartwolf.sinks.dropped",
		metric.WithDescription("Sinks removed after a write failure."),
	); err != nil {
		return nil, err
	}

	if _, err = m.Int64ObservableGauge("heartwolf.heart_rate",
		metric.WithDescription("Last reported heart rate."),
		metric.WithUnit("{beat}/min"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(met.heartRate.Load())
			return nil
		}),
	); err != nil {
		return nil, err
	}
	if _, err = m.Int64ObservableGauge("heartwolf.breath_rate",
		metric.WithDescription("Last reported breath rate."),
		metric.WithUnit("{breath}/min"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(met.breathRate.Load())
			return nil
		}),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NewPrometheusMetrics wires Metrics to a Prometheus registry and returns
// the handler to serve on /metrics.
func NewPrometheusMetrics() (*Metrics, http.Handler, func(context.Context) error, error) {
	var reg = prometheus.NewRegistry()

	var exp, err = promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, err
	}

	var mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	met, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, nil, err
	}

	return met, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), mp.Shutdown, nil
}

func (m *Metrics) count(c func(*Metrics) metric.Int64Counter) {
	if m == nil {
		return
	}
	c(m).Add(context.Background(), 1)
}

func (m *Metrics) frameDecoded() { m.count(func(m *Metrics) metric.Int64Counter { return m.FramesDecoded }) }
func (m *Metrics) frameError()   { m.count(func(m *Metrics) metric.Int64Counter { return m.FrameErrors }) }
func (m *Metrics) notReady()     { m.count(func(m *Metrics) metric.Int64Counter { return m.NotReady }) }
func (m *Metrics) leadOff()      { m.count(func(m *Metrics) metric.Int64Counter { return m.LeadOff }) }
func (m *Metrics) packetSent()   { m.count(func(m *Metrics) metric.Int64Counter { return m.PacketsSent }) }
func (m *Metrics) sinkDropped()  { m.count(func(m *Metrics) metric.Int64Counter { return m.SinkDrops }) }

func (m *Metrics) rates(heart, breath int) {
	if m == nil {
		return
	}
	m.heartRate.Store(int64(heart))
	m.breathRate.Store(int64(breath))
}
