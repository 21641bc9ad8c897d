/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package feedserver is a small filtered-stream server for local runs and
// tests. It accepts subscribe requests and fans published statuses out to
// every subscriber whose track terms match.
package feedserver

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
)

const (
	defaultKeepAlive   = 30 * time.Second
	defaultReadTimeout = 5 * time.Second
	subscriberBuffer   = 64
)

// Server is a filtered status stream server.
type Server struct {
	listener  net.Listener
	host      string
	keepAlive time.Duration
	logger    *logiface.Logger[logiface.Event]

	clientsMu sync.Mutex
	clients   map[*subscriber]struct{}

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stopped   atomic.Bool
	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(s *Server) { s.logger = logger }
}

// WithKeepAlive sets the keep-alive interval. Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// Start creates and runs a server bound to addr.
// Use 127.0.0.1:0 to allocate an ephemeral port.
func Start(addr string, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:  ln,
		host:      parseHost(addr),
		keepAlive: defaultKeepAlive,
		clients:   make(map[*subscriber]struct{}),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			s.logger.Warning().Err(err).Log("accept failed")
			continue
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	sub, err := feedproto.ReadSubscription(bufio.NewReader(conn))
	if err != nil {
		s.logger.Info().Str("remote", conn.RemoteAddr().String()).Err(err).Log("rejected subscription")
		_, _ = conn.Write(feedproto.ResponseHeader(400, "Bad Request"))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if _, err := conn.Write(feedproto.ResponseHeader(200, "OK")); err != nil {
		return
	}

	c := &subscriber{
		sub:  sub,
		out:  make(chan []byte, subscriberBuffer),
		done: make(chan struct{}),
	}
	if !s.add(c) {
		return
	}
	defer s.remove(c)

	s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Int("terms", len(sub.Track)).Log("subscriber joined")

	// A read returning means the peer went away.
	go func() {
		var buf [512]byte
		for {
			if _, err := conn.Read(buf[:]); err != nil {
				c.stop()
				return
			}
		}
	}()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		t := time.NewTicker(s.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case wire := <-c.out:
			if _, err := conn.Write(wire); err != nil {
				return
			}
		case <-tick:
			if _, err := conn.Write(feedproto.AppendKeepAlive(nil)); err != nil {
				return
			}
		case <-c.done:
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *Server) add(c *subscriber) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.stopped.Load() {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) remove(c *subscriber) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
	c.stop()
}

// Publish sends st to every matching subscriber and returns how many
// received it. A subscriber whose buffer is full misses the status.
func (s *Server) Publish(st feedproto.Status) (int, error) {
	wire, err := feedproto.Encode(st)
	if err != nil {
		return 0, err
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	n := 0
	for c := range s.clients {
		if !c.sub.Matches(st.Text) {
			continue
		}
		select {
		case c.out <- wire:
			n++
		default:
			s.dropped.Add(1)
		}
	}
	s.published.Add(1)
	return n, nil
}

// Subscribers returns the number of connected subscribers.
func (s *Server) Subscribers() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Addr returns listener address host:port.
func (s *Server) Addr() string {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	return net.JoinHostPort(s.host, port)
}

// Close shuts down the server and waits for every connection to finish.
func (s *Server) Close() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	err := s.listener.Close()
	s.wg.Wait()
	s.logger.Debug().Uint64("published", s.published.Load()).Log("feed server stopped")
	if err != nil {
		return fmt.Errorf("feedserver: close listener: %w", err)
	}
	return nil
}

type subscriber struct {
	sub  feedproto.Subscription
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *subscriber) stop() {
	c.once.Do(func() { close(c.done) })
}

func parseHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "0.0.0.0" {
		return "127.0.0.1"
	}
	return host
}
