package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Pseudo terminal that looks like the monitor's serial
 *		port to host software on the same machine.
 *
 * Description:	The slave name is different every time, so a symlink
 *		with a fixed name points at it.
 *
 *		If no one is reading the other end, the pty buffer fills
 *		and a write would block the acquisition loop.  Packets go
 *		through a small queue and are dropped when it is full.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
)

const DEFAULT_PTY_SYMLINK = "/tmp/heartwolf"

const PTY_QUEUE_LEN = 256

var ErrSinkClosed = errors.New("sink closed")

type PtySink struct {
	master  *os.File
	slave   *os.File // Held open, some systems remove the slave otherwise.
	symlink string

	queue chan []byte
	done  chan struct{}
	once  sync.Once

	failed  atomic.Pointer[error]
	dropped atomic.Uint64

	log *log.Logger
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenPtySink
 *
 * Purpose:     Create the pseudo terminal and symlink.
 *
 * Inputs:	symlink	- Fixed name for host software.  Empty for none.
 *
 *--------------------------------------------------------------------*/

func OpenPtySink(symlink string, logger *log.Logger) (*PtySink, error) {
	if logger == nil {
		logger = quietLogger()
	}

	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, err
	}

	var s = &PtySink{
		master:  ptmx,
		slave:   pts,
		symlink: symlink,
		queue:   make(chan []byte, PTY_QUEUE_LEN),
		done:    make(chan struct{}),
		log:     logger,
	}

	logger.Info("Virtual monitor port available", "device", pts.Name())

	if symlink != "" {
		os.Remove(symlink)
		if err := os.Symlink(pts.Name(), symlink); err != nil {
			ptmx.Close()
			pts.Close()
			return nil, err
		}
		logger.Info("Created symlink", "link", symlink, "device", pts.Name())
	}

	go s.writer()

	return s, nil
}

func (s *PtySink) Name() string {
	return s.slave.Name()
}

func (s *PtySink) writer() {
	for {
		select {
		case <-s.done:
			return
		case p := <-s.queue:
			if _, err := s.master.Write(p); err != nil {
				s.failed.Store(&err)
				return
			}
		}
	}
}

// Write queues p.  It fails only once the pty itself has failed; a full
// queue just loses the packet.
func (s *PtySink) Write(p []byte) (int, error) {
	if err := s.failed.Load(); err != nil {
		return 0, *err
	}

	select {
	case <-s.done:
		return 0, ErrSinkClosed
	default:
	}

	var buf = make([]byte, len(p))
	copy(buf, p)

	select {
	case s.queue <- buf:
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warn("Pseudo terminal not being read, dropping packets", "device", s.slave.Name())
		}
	}
	return len(p), nil
}

// Dropped is the number of packets lost to a full queue.
func (s *PtySink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *PtySink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.symlink != "" {
			os.Remove(s.symlink)
		}
		err = errors.Join(s.master.Close(), s.slave.Close())
	})
	return err
}
