package heartwolf

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertOutputContains runs command with stdout captured.
func AssertOutputContains(t *testing.T, command func(), expectedOutputContains string) {
	t.Helper()

	var oldStdout = os.Stdout
	defer func() {
		os.Stdout = oldStdout
	}()

	var r, w, _ = os.Pipe()
	os.Stdout = w

	command()

	w.Close() //nolint:gosec

	os.Stdout = oldStdout

	var outputBytes, readErr = io.ReadAll(r)

	require.NoError(t, readErr)

	var outputString = string(outputBytes)

	assert.Contains(t, outputString, expectedOutputContains)
}

// SliceSource is a FrameSource over canned frames.  NotReady polls can be
// interleaved, and Err is returned by the next ReadFrame if set.
type SliceSource struct {
	Frames   []SampleFrame
	NotReady int // Polls to answer "not ready" before the next frame.
	Err      error

	pending int
}

func (s *SliceSource) Ready() (bool, error) {
	if s.pending < s.NotReady {
		s.pending++
		return false, nil
	}
	return len(s.Frames) > 0 || s.Err != nil, nil
}

func (s *SliceSource) ReadFrame() (SampleFrame, error) {
	s.pending = 0
	if s.Err != nil {
		var err = s.Err
		s.Err = nil
		return SampleFrame{}, err
	}
	var f = s.Frames[0]
	s.Frames = s.Frames[1:]
	return f, nil
}
