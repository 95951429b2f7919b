package heartwolf

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	var reader = sdkmetric.NewManualReader()
	var mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	var m, err = NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collectInt64(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Len(t, d.DataPoints, 1)
				return d.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				require.Len(t, d.DataPoints, 1)
				return d.DataPoints[0].Value
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsFromPipeline(t *testing.T) {
	var met, reader = newTestMetrics(t)

	var src = &SliceSource{
		NotReady: 1,
		Frames: []SampleFrame{
			EncodeFrame(STATUS_PREAMBLE, 0, 0),
			EncodeFrame(STATUS_PREAMBLE|0x1f<<15, 0, 0),
			EncodeFrame(STATUS_PREAMBLE, 0, 0),
		},
	}

	var cfg = DefaultPipelineConfig()
	cfg.Metrics = met
	var p, err = NewPipeline(src, cfg)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		var _, _, perr = p.PollSample()
		require.NoError(t, perr)
	}

	assert.Equal(t, int64(3), collectInt64(t, reader, "heartwolf.frames.decoded"))
	assert.Equal(t, int64(3), collectInt64(t, reader, "heartwolf.polls.not_ready"))
	assert.Equal(t, int64(1), collectInt64(t, reader, "heartwolf.samples.lead_off"))
	assert.Equal(t, int64(0), collectInt64(t, reader, "heartwolf.heart_rate"))
}

func TestMetricsFromReporter(t *testing.T) {
	var met, reader = newTestMetrics(t)

	var r = NewReporter(1, nil, met)
	r.Attach("bad", &failingWriter{})
	r.Attach("ok", &discardWriter{})

	r.Report(Vitals{HeartRate: 66, BreathRate: 12})
	r.Report(Vitals{})

	assert.Equal(t, int64(2), collectInt64(t, reader, "heartwolf.packets.sent"))
	assert.Equal(t, int64(1), collectInt64(t, reader, "heartwolf.sinks.dropped"))
}

func TestMetricsRates(t *testing.T) {
	var met, reader = newTestMetrics(t)

	met.rates(72, 18)
	assert.Equal(t, int64(72), collectInt64(t, reader, "heartwolf.heart_rate"))
	assert.Equal(t, int64(18), collectInt64(t, reader, "heartwolf.breath_rate"))
}

func TestMetricsNil(t *testing.T) {
	var met *Metrics

	assert.NotPanics(t, func() {
		met.frameDecoded()
		met.sinkDropped()
		met.rates(1, 2)
	})
}

func TestPrometheusMetrics(t *testing.T) {
	var met, handler, shutdown, err = NewPrometheusMetrics()
	require.NoError(t, err)
	defer shutdown(context.Background())

	met.frameDecoded()
	met.rates(61, 0)

	var rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "heartwolf_frames_decoded")
	assert.Contains(t, rec.Body.String(), "heartwolf_heart_rate")
}

type discardWriter struct{}

func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }
