/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package transport provides tweetfeed.Driver implementations: a TCP driver
// that speaks to a streaming endpoint, and a stub that replays canned tweets.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

const defaultEventBuffer = 256
const defaultReadSize = 4096

// NetDriver executes I/O commands over net.Conn. Each open connection gets a
// reader goroutine that reports data and closure through Events.
type NetDriver struct {
	Timeout time.Duration
	Dial    func(ctx context.Context, network, addr string) (net.Conn, error)

	logger *logiface.Logger[logiface.Event]
	events chan tweetfeed.TransportEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[tweetfeed.Handle]*conn
}

type conn struct {
	c   net.Conn
	gen uint64
}

// Option configures a NetDriver.
type Option func(*NetDriver)

// WithLogger sets the driver's logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(d *NetDriver) { d.logger = logger }
}

// WithTimeout bounds dials and writes.
func WithTimeout(timeout time.Duration) Option {
	return func(d *NetDriver) { d.Timeout = timeout }
}

// WithDial replaces the dial function.
func WithDial(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(d *NetDriver) { d.Dial = dial }
}

// NewNetDriver creates a driver with default TCP dial behavior.
func NewNetDriver(opts ...Option) *NetDriver {
	ctx, cancel := context.WithCancel(context.Background())
	d := &NetDriver{
		Timeout: 5 * time.Second,
		events:  make(chan tweetfeed.TransportEvent, defaultEventBuffer),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[tweetfeed.Handle]*conn),
	}
	d.Dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := net.Dialer{Timeout: d.Timeout}
		return dialer.DialContext(ctx, network, addr)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events implements tweetfeed.Driver.
func (d *NetDriver) Events() <-chan tweetfeed.TransportEvent {
	return d.events
}

// Exec implements tweetfeed.Driver. Dialing happens off the calling
// goroutine; the result arrives as a Connected or Closed event.
func (d *NetDriver) Exec(ev tweetfeed.IOEvent) error {
	if d.ctx.Err() != nil {
		return tweetfeed.ErrChannelClosed
	}

	switch ev.Kind {
	case tweetfeed.IOOpenConnection:
		addr, err := dialAddr(ev.Config.Endpoint)
		if err != nil {
			return err
		}
		gen := d.reserve(ev.Handle)
		d.wg.Add(1)
		go d.connect(ev.Handle, gen, addr)
		return nil

	case tweetfeed.IOSendBytes:
		c := d.lookup(ev.Handle)
		if c == nil {
			return fmt.Errorf("transport: handle %d not connected", ev.Handle)
		}
		if d.Timeout > 0 {
			_ = c.SetWriteDeadline(time.Now().Add(d.Timeout))
		}
		if _, err := c.Write(ev.Data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil

	case tweetfeed.IOCloseConnection:
		d.mu.Lock()
		cur := d.conns[ev.Handle]
		delete(d.conns, ev.Handle)
		d.mu.Unlock()
		if cur != nil && cur.c != nil {
			return cur.c.Close()
		}
		return nil

	default:
		return fmt.Errorf("transport: unsupported command %s", ev.Kind)
	}
}

// reserve starts a new connection generation for h, closing any previous
// connection so its reader stops.
func (d *NetDriver) reserve(h tweetfeed.Handle) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var gen uint64 = 1
	if prev, ok := d.conns[h]; ok {
		gen = prev.gen + 1
		if prev.c != nil {
			_ = prev.c.Close()
		}
	}
	d.conns[h] = &conn{gen: gen}
	return gen
}

func (d *NetDriver) lookup(h tweetfeed.Handle) net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.conns[h]; ok {
		return cur.c
	}
	return nil
}

func (d *NetDriver) connect(h tweetfeed.Handle, gen uint64, addr string) {
	defer d.wg.Done()

	c, err := d.Dial(d.ctx, "tcp", addr)
	if err != nil {
		d.send(tweetfeed.TransportEvent{
			Kind:   tweetfeed.TransportClosed,
			Handle: h,
			Err:    &tweetfeed.DriverFailure{Handle: h, Op: "dial", Err: err},
		})
		return
	}

	d.mu.Lock()
	cur, ok := d.conns[h]
	if !ok || cur.gen != gen || d.ctx.Err() != nil {
		d.mu.Unlock()
		_ = c.Close()
		return
	}
	cur.c = c
	d.mu.Unlock()

	d.logger.Debug().Uint64("handle", uint64(h)).Str("addr", addr).Log("connected")
	if !d.send(tweetfeed.TransportEvent{Kind: tweetfeed.TransportConnected, Handle: h}) {
		return
	}
	d.read(h, gen, c)
}

func (d *NetDriver) read(h tweetfeed.Handle, gen uint64, c net.Conn) {
	buf := make([]byte, defaultReadSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !d.send(tweetfeed.TransportEvent{Kind: tweetfeed.TransportData, Handle: h, Data: data}) {
				return
			}
		}
		if err == nil {
			continue
		}

		if !d.current(h, gen) {
			// closed on purpose
			return
		}
		ev := tweetfeed.TransportEvent{Kind: tweetfeed.TransportClosed, Handle: h}
		if !errors.Is(err, io.EOF) {
			ev.Err = &tweetfeed.DriverFailure{Handle: h, Op: "read", Err: err}
		}
		d.send(ev)
		return
	}
}

func (d *NetDriver) current(h tweetfeed.Handle, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.conns[h]
	return ok && cur.gen == gen
}

func (d *NetDriver) send(ev tweetfeed.TransportEvent) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// Close closes every connection and waits for the reader goroutines.
func (d *NetDriver) Close() error {
	d.cancel()

	d.mu.Lock()
	conns := d.conns
	d.conns = make(map[tweetfeed.Handle]*conn)
	d.mu.Unlock()

	var errs []error
	for _, cur := range conns {
		if cur.c != nil {
			if err := cur.c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
	}
	d.wg.Wait()
	return errors.Join(errs...)
}

func dialAddr(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("transport: empty endpoint")
	}
	host, port, err := net.SplitHostPort(hostOf(endpoint))
	if err != nil {
		return "", fmt.Errorf("transport: endpoint %q: %w", endpoint, err)
	}
	return net.JoinHostPort(host, port), nil
}

// hostOf accepts either host:port or a URL, defaulting the port from the
// scheme.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "http":
		return net.JoinHostPort(u.Hostname(), "80")
	default:
		return net.JoinHostPort(u.Hostname(), "443")
	}
}
