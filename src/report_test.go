package heartwolf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	closed bool
}

func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("gone") }
func (f *failingWriter) Close() error              { f.closed = true; return nil }

func TestReporterFanOut(t *testing.T) {
	var r = NewReporter(1, nil, nil)
	var a, b bytes.Buffer
	r.Attach("a", &a)
	r.Attach("b", &b)

	var v = Vitals{ECG: 10, HeartRate: 70}
	assert.Equal(t, 2, r.Report(v))

	var want = EncodeVitalsPacket(PayloadFromVitals(v))
	assert.Equal(t, want, a.Bytes())
	assert.Equal(t, want, b.Bytes())
}

func TestReporterDropsFailedSink(t *testing.T) {
	var r = NewReporter(1, nil, nil)
	var good bytes.Buffer
	var bad = &failingWriter{}
	r.Attach("bad", bad)
	r.Attach("good", &good)

	assert.Equal(t, 1, r.Report(Vitals{}))
	assert.True(t, bad.closed)
	assert.Equal(t, []string{"good"}, r.Sinks())

	assert.Equal(t, 1, r.Report(Vitals{}))
	assert.Len(t, good.Bytes(), 2*(VITALS_PAYLOAD_LEN+PKT_OVERHEAD))
}

func TestReporterDecimates(t *testing.T) {
	var r = NewReporter(5, nil, nil)
	var buf bytes.Buffer
	r.Attach("buf", &buf)

	for i := 0; i < 12; i++ {
		r.Report(Vitals{ECG: int16(i)})
	}

	var d PacketDecoder
	var pkts = d.Feed(buf.Bytes())
	require.Len(t, pkts, 3)

	var ecg []int16
	for _, p := range pkts {
		var v, err = ParseVitalsPayload(p.Payload)
		require.NoError(t, err)
		ecg = append(ecg, v.ECG)
	}
	assert.Equal(t, []int16{0, 5, 10}, ecg)
}

func TestReporterDetachAndClose(t *testing.T) {
	var r = NewReporter(0, nil, nil)
	var w = &failingWriter{}
	r.Attach("w", w)
	r.Attach("other", &bytes.Buffer{})

	assert.True(t, r.Detach("other"))
	assert.False(t, r.Detach("other"))

	require.NoError(t, r.Close())
	assert.True(t, w.closed)
	assert.Empty(t, r.Sinks())
}
