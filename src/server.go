package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide the result packet stream over TCP.
 *
 * Description:	Clients connect and get exactly the bytes a serial
 *		host would: packets, back to back, starting on a packet
 *		boundary.  Anything a client sends is read and ignored,
 *		only so we notice when it goes away.
 *
 *		There are only a few client slots.  When they are all
 *		taken, new connections are closed straight away.
 *
 *		Each client has its own queue and writer goroutine.  A
 *		client whose queue fills up is dropped, so the acquisition
 *		loop never waits on the network.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const DEFAULT_RESULT_PORT = 8050

const MAX_NET_CLIENTS = 3

// Writes that stall this long mean the client isn't keeping up.
const CLIENT_WRITE_TIMEOUT = 2 * time.Second

// About 2 seconds of packets at 125 per second.
const NET_CLIENT_QUEUE_LEN = 256

var ErrClientBehind = errors.New("result client not keeping up")

type ResultServer struct {
	ln       net.Listener
	reporter *Reporter
	log      *log.Logger

	mu      sync.Mutex
	clients map[string]*netClient
	seq     atomic.Uint64
}

// netClient is written by the Reporter on the acquisition goroutine, so
// Write only queues.  The socket is written by its own goroutine.
type netClient struct {
	conn net.Conn
	name string
	srv  *ResultServer

	queue  chan []byte
	done   chan struct{}
	failed atomic.Pointer[error]
	once   sync.Once
}

func (c *netClient) writer() {
	for {
		select {
		case <-c.done:
			return
		case p := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(CLIENT_WRITE_TIMEOUT))
			if _, err := c.conn.Write(p); err != nil {
				c.failed.Store(&err)
				c.conn.Close()
				return
			}
		}
	}
}

// Write queues p.  A full queue is an error, so the Reporter drops a
// client that has stopped reading rather than waiting on it.
func (c *netClient) Write(p []byte) (int, error) {
	if err := c.failed.Load(); err != nil {
		return 0, *err
	}

	select {
	case <-c.done:
		return 0, ErrSinkClosed
	default:
	}

	var buf = make([]byte, len(p))
	copy(buf, p)

	select {
	case c.queue <- buf:
		return len(p), nil
	default:
		return 0, ErrClientBehind
	}
}

// Close is called by the Reporter when a write fails, or by the reader
// when the client hangs up.  Either way the slot is freed once.
func (c *netClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
		c.srv.mu.Lock()
		delete(c.srv.clients, c.name)
		c.srv.mu.Unlock()
	})
	return err
}

/*-------------------------------------------------------------------
 *
 * Name:        ListenResults
 *
 * Purpose:     Open the listening socket.
 *
 * Inputs:	addr	- host:port, or :port for all interfaces.
 *
 *		r	- Where accepted clients are attached.
 *
 *--------------------------------------------------------------------*/

func ListenResults(addr string, r *Reporter, logger *log.Logger) (*ResultServer, error) {
	if logger == nil {
		logger = quietLogger()
	}

	var ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("result server listen on %s: %w", addr, err)
	}

	return &ResultServer{
		ln:       ln,
		reporter: r,
		log:      logger,
		clients:  make(map[string]*netClient),
	}, nil
}

func (s *ResultServer) Addr() net.Addr {
	return s.ln.Addr()
}

// Port is the bound TCP port, useful when listening on :0.
func (s *ResultServer) Port() int {
	if a, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (s *ResultServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Serve accepts clients until ctx is cancelled.  It always returns a
// non-nil error; ctx.Err() after a normal shutdown.
func (s *ResultServer) Serve(ctx context.Context) error {
	var stop = context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	for {
		var conn, err = s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeClients()
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				s.closeClients()
				return err
			}
			s.log.Warn("Accept failed", "err", err)
			continue
		}

		var c = s.addClient(conn)
		if c == nil {
			s.log.Warn("Too many result clients, refusing", "remote", conn.RemoteAddr(), "max", MAX_NET_CLIENTS)
			conn.Close()
			continue
		}

		s.reporter.Attach(c.name, c)
		go s.drain(c)
	}
}

// addClient takes a slot and starts the client's writer.  nil when
// there are no free slots.
func (s *ResultServer) addClient(conn net.Conn) *netClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) >= MAX_NET_CLIENTS {
		return nil
	}

	var c = &netClient{
		conn:  conn,
		name:  fmt.Sprintf("tcp#%d %s", s.seq.Add(1), conn.RemoteAddr()),
		srv:   s,
		queue: make(chan []byte, NET_CLIENT_QUEUE_LEN),
		done:  make(chan struct{}),
	}
	s.clients[c.name] = c

	go c.writer()

	return c
}

func (s *ResultServer) drain(c *netClient) {
	var _, err = io.Copy(io.Discard, c.conn)

	// The Reporter may have dropped it already.
	if s.reporter.Detach(c.name) {
		s.log.Info("Result client disconnected", "client", c.name, "err", err)
	}
	c.Close()
}

func (s *ResultServer) closeClients() {
	s.mu.Lock()
	var all = make([]*netClient, 0, len(s.clients))
	for _, c := range s.clients {
		all = append(all, c)
	}
	s.mu.Unlock()

	for _, c := range all {
		s.reporter.Detach(c.name)
		c.Close()
	}
}

func (s *ResultServer) Close() error {
	var err = s.ln.Close()
	s.closeClients()
	return err
}
