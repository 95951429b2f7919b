package heartwolf

// Raw frame captures: 9 byte frames back to back, no header.
// Used for replay, offline decoding and the synthetic generator.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// FrameFileSource replays a capture.  It is always ready until the data
// runs out, after which it is never ready again and Done reports true.
type FrameFileSource struct {
	r      *bufio.Reader
	closer io.Closer

	next     SampleFrame
	haveNext bool
	done     bool
	err      error
}

func NewFrameReader(r io.Reader) *FrameFileSource {
	var s = &FrameFileSource{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func OpenFrameFile(path string) (*FrameFileSource, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return NewFrameReader(f), nil
}

func (s *FrameFileSource) Ready() (bool, error) {
	if s.haveNext {
		return true, nil
	}
	if s.done {
		return false, nil
	}

	var _, err = io.ReadFull(s.r, s.next[:])
	switch {
	case err == nil:
		s.haveNext = true
		return true, nil
	case errors.Is(err, io.EOF):
		s.done = true
		return false, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		// A partial frame at the end of a capture is just truncation.
		s.done = true
		s.err = ErrShortFrame
		return false, nil
	default:
		s.done = true
		s.err = err
		return false, err
	}
}

func (s *FrameFileSource) ReadFrame() (SampleFrame, error) {
	if !s.haveNext {
		return SampleFrame{}, errors.New("no frame ready")
	}
	s.haveNext = false
	return s.next, nil
}

// Done is true once the capture is exhausted.
func (s *FrameFileSource) Done() bool {
	return s.done && !s.haveNext
}

// Err reports why the capture ended early, if it did.
func (s *FrameFileSource) Err() error {
	return s.err
}

func (s *FrameFileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type FrameFileWriter struct {
	w *bufio.Writer
	c io.Closer
}

func NewFrameWriter(w io.Writer) *FrameFileWriter {
	var fw = &FrameFileWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		fw.c = c
	}
	return fw
}

func CreateFrameFile(path string) (*FrameFileWriter, error) {
	var f, err = os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	return NewFrameWriter(f), nil
}

func (fw *FrameFileWriter) WriteFrame(f SampleFrame) error {
	var _, err = fw.w.Write(f[:])
	return err
}

func (fw *FrameFileWriter) Close() error {
	var err = fw.w.Flush()
	if fw.c != nil {
		if cerr := fw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
