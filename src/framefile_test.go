package heartwolf

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameFileRoundTrip(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "capture.bin")

	var synth = NewSynth(DefaultSynthConfig())
	var want []SampleFrame

	var w, err = CreateFrameFile(path)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		var f = synth.Next()
		want = append(want, f)
		require.NoError(t, w.WriteFrame(f))
	}
	require.NoError(t, w.Close())

	src, err := OpenFrameFile(path)
	require.NoError(t, err)
	defer src.Close()

	var got []SampleFrame
	for {
		var ready, rerr = src.Ready()
		require.NoError(t, rerr)
		if !ready {
			break
		}
		var f, ferr = src.ReadFrame()
		require.NoError(t, ferr)
		got = append(got, f)
	}

	assert.Equal(t, want, got)
	assert.True(t, src.Done())
	assert.NoError(t, src.Err())
}

func TestFrameFileTruncated(t *testing.T) {
	var data = make([]byte, 2*FRAME_SIZE+4)
	var src = NewFrameReader(bytes.NewReader(data))

	var n = 0
	for {
		var ready, err = src.Ready()
		require.NoError(t, err)
		if !ready {
			break
		}
		src.ReadFrame()
		n++
	}

	assert.Equal(t, 2, n)
	assert.True(t, src.Done())
	assert.ErrorIs(t, src.Err(), ErrShortFrame)
}

func TestFrameFileReadyIsIdempotent(t *testing.T) {
	var src = NewFrameReader(bytes.NewReader(make([]byte, FRAME_SIZE)))

	for i := 0; i < 3; i++ {
		var ready, _ = src.Ready()
		assert.True(t, ready)
	}
	assert.False(t, src.Done())

	var _, err = src.ReadFrame()
	require.NoError(t, err)

	_, err = src.ReadFrame()
	assert.Error(t, err, "nothing was announced as ready")
}

func TestFrameFileDrivesPipeline(t *testing.T) {
	var buf bytes.Buffer
	var w = NewFrameWriter(&buf)
	var synth = NewSynth(DefaultSynthConfig())
	for i := 0; i < 20*SAMPLE_RATE; i++ {
		require.NoError(t, w.WriteFrame(synth.Next()))
	}
	require.NoError(t, w.Close())

	var src = NewFrameReader(&buf)
	var p = newTestPipeline(t, src)

	for !src.Done() {
		var _, _, err = p.PollSample()
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(20*SAMPLE_RATE), p.Vitals().Sample)
	assert.InDelta(t, 75, p.HeartRate(), 2)
}
