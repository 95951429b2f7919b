package heartwolf

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthPackets runs the synthesizer through a pipeline and returns the
// result packet stream heartwolf would have sent.
func synthPackets(t *testing.T, cfg SynthConfig, seconds int) []byte {
	t.Helper()

	var p = newTestPipeline(t, NewSynth(cfg))
	var r = NewReporter(1, nil, nil)
	var buf bytes.Buffer
	r.Attach("buf", &buf)

	for i := 0; i < seconds*SAMPLE_RATE; i++ {
		var _, ok, err = p.PollSample()
		require.NoError(t, err)
		require.True(t, ok)
		r.Report(p.Vitals())
	}
	return buf.Bytes()
}

func TestMonitorVitals(t *testing.T) {
	var stream = synthPackets(t, DefaultSynthConfig(), 30)

	// Line noise in front, as when opening a port mid stream.
	stream = append([]byte{0x00, 0x0A, 0x13, 0xFA}, stream...)

	var out bytes.Buffer
	var sum, err = MonitorVitals(context.Background(), bytes.NewReader(stream), &out, MonitorOptions{Every: SAMPLE_RATE})
	require.NoError(t, err)

	assert.Equal(t, uint64(30*SAMPLE_RATE), sum.Packets)
	assert.Equal(t, 4, sum.Discarded)
	assert.Zero(t, sum.LeadOff)
	assert.InDelta(t, 75, sum.HeartRate, 3)

	var lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 30)
	assert.True(t, strings.HasPrefix(lines[0], "ECG "))
}

func TestMonitorVitalsAverage(t *testing.T) {
	var stream = synthPackets(t, DefaultSynthConfig(), 10)

	var sum, err = MonitorVitals(context.Background(), bytes.NewReader(stream), &bytes.Buffer{}, MonitorOptions{
		Average: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2*SAMPLE_RATE), sum.Packets)
}

func TestMonitorVitalsLeadOff(t *testing.T) {
	var cfg = DefaultSynthConfig()
	cfg.LeadOffFrom = 100
	cfg.LeadOffTo = 150

	var out bytes.Buffer
	var sum, err = MonitorVitals(context.Background(), bytes.NewReader(synthPackets(t, cfg, 2)), &out, MonitorOptions{Every: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), sum.LeadOff)
	assert.Contains(t, out.String(), "LEAD OFF")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("port gone") }

func TestMonitorVitalsReadError(t *testing.T) {
	var _, err = MonitorVitals(context.Background(), failingReader{}, &bytes.Buffer{}, MonitorOptions{})
	assert.EqualError(t, err, "port gone")

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = MonitorVitals(ctx, bytes.NewReader(nil), &bytes.Buffer{}, MonitorOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSecondsRange(t *testing.T) {
	var from, to, err = parseSecondsRange("2.5:4")
	require.NoError(t, err)
	assert.Equal(t, 2.5, from)
	assert.Equal(t, 4.0, to)

	for _, bad := range []string{"", "3", "a:4", "4:b", "5:1", "-1:2"} {
		_, _, err = parseSecondsRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonitorVitalsOtherPackets(t *testing.T) {
	var stream = EncodePacket(0x05, []byte("hello"))
	stream = append(stream, EncodePacket(PKT_TYPE_DATA, []byte{1, 2})...)

	var out bytes.Buffer
	var sum, err = MonitorVitals(context.Background(), bytes.NewReader(stream), &out, MonitorOptions{})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), sum.Other)
	assert.Zero(t, sum.Packets)
	assert.Contains(t, out.String(), "Packet type 0x05, 5 bytes:")
	assert.Contains(t, out.String(), "  000:  68 65 6c 6c 6f")
	assert.Contains(t, out.String(), "hello\n")
}

func TestVersionString(t *testing.T) {
	assert.True(t, strings.HasPrefix(VersionString(), "Heartwolf - Version "))
}
