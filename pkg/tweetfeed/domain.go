/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Driver is the transport collaborator. Exec is called on the domain
// goroutine and must not block for long; results come back through Events.
type Driver interface {
	Exec(ev IOEvent) error
	Events() <-chan TransportEvent
	Close() error
}

// domainLoop owns the state machine and runs on a single goroutine.
//
// Each iteration waits for the control queue or the driver, dispatches, and
// repeats until the control queue is closed.
type domainLoop struct {
	control *queue[ControlMessage]
	events  *queue[UIEvent]
	signal  *signalHandler
	machine StateMachine
	driver  Driver
	logger  *logiface.Logger[logiface.Event]

	dispatched atomic.Uint64
	done       chan struct{}
}

func (d *domainLoop) run() {
	defer close(d.done)
	// Anything that ends the loop also fails later sends.
	defer d.control.close()

	d.logger.Debug().Log("domain loop started")
	transport := d.driver.Events()
	for {
		select {
		case <-d.control.ready:
			for {
				msg, ok := d.control.pop()
				if !ok {
					break
				}
				d.handleControl(msg)
			}
			if d.control.isClosed() {
				d.logger.Debug().Uint64("dispatched", d.dispatched.Load()).Log("domain loop stopped")
				return
			}
		case ev, ok := <-transport:
			if !ok {
				transport = nil
				d.logger.Warning().Log("driver event channel closed")
				continue
			}
			d.process(ev.Handle, func() Output { return d.machine.OnTransport(ev) })
		}
	}
}

func (d *domainLoop) handleControl(msg ControlMessage) {
	if msg.Kind == ControlDestroy {
		removed := d.events.retain(func(ev UIEvent) bool {
			return ev.Handle != msg.Handle || ev.Kind != UITweetArrived
		})
		if removed > 0 {
			d.logger.Debug().Uint64("handle", uint64(msg.Handle)).Int("purged", removed).Log("discarded queued tweets for destroyed stream")
		}
	}
	d.process(msg.Handle, func() Output { return d.machine.OnControl(msg) })
}

// maxFailureChain bounds how many driver failures one dispatch may fold back
// into the machine. Streams still failing after that are closed with
// ErrFailureChain.
const maxFailureChain = 16

// process runs one dispatch, then repeated Continue calls for the same
// handle. Driver failures are queued as synthetic closed events and
// dispatched in turn.
func (d *domainLoop) process(h Handle, step func() Output) {
	var backlog []TransportEvent
	for chain := 0; ; chain++ {
		d.dispatched.Add(1)
		out, ok := d.invoke(h, func() (Output, bool) { return step(), true })
		if ok {
			backlog = d.apply(out, backlog)
			for {
				out, more := d.invoke(h, func() (Output, bool) { return d.machine.Continue(h) })
				if !more {
					break
				}
				backlog = d.apply(out, backlog)
			}
		}

		if len(backlog) == 0 {
			return
		}
		if chain >= maxFailureChain {
			d.giveUp(backlog)
			return
		}
		ev := backlog[0]
		backlog = backlog[1:]
		h = ev.Handle
		step = func() Output { return d.machine.OnTransport(ev) }
	}
}

// invoke guards a state machine call. A panic closes the handle instead of
// the goroutine.
func (d *domainLoop) invoke(h Handle, fn func() (Output, bool)) (out Output, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tweetfeed: state machine panic: %v", r)
			d.logger.Err().Uint64("handle", uint64(h)).Err(err).Log("dispatch failed")
			d.abandon(h)
			d.emit(UIEvent{Kind: UIStreamClosed, Handle: h, Err: err})
			out, ok = Output{}, false
		}
	}()
	return fn()
}

// giveUp ends every stream left in backlog with a terminal StreamClosed.
func (d *domainLoop) giveUp(backlog []TransportEvent) {
	last := make(map[Handle]error)
	var order []Handle
	for _, ev := range backlog {
		if _, ok := last[ev.Handle]; !ok {
			order = append(order, ev.Handle)
		}
		last[ev.Handle] = ev.Err
	}
	for _, h := range order {
		err := errors.Join(ErrFailureChain, last[h])
		d.logger.Err().Uint64("handle", uint64(h)).Err(err).Log("closing stream")
		d.abandon(h)
		d.emit(UIEvent{Kind: UIStreamClosed, Handle: h, Err: err})
	}
}

// abandon makes a best-effort attempt to release h after a panic.
func (d *domainLoop) abandon(h Handle) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Err().Uint64("handle", uint64(h)).Str("panic", fmt.Sprint(r)).Log("state machine failed to release stream")
		}
	}()
	out := d.machine.OnControl(DestroyMsg(h))
	if out.IO != nil {
		if err := d.driver.Exec(*out.IO); err != nil {
			d.logger.Warning().Uint64("handle", uint64(h)).Err(err).Log("driver close failed")
		}
	}
}

func (d *domainLoop) apply(out Output, backlog []TransportEvent) []TransportEvent {
	if out.UI != nil {
		d.emit(*out.UI)
	}
	if out.IO != nil {
		if err := d.driver.Exec(*out.IO); err != nil {
			failure := &DriverFailure{Handle: out.IO.Handle, Op: out.IO.Kind.String(), Err: err}
			d.logger.Warning().Uint64("handle", uint64(out.IO.Handle)).Err(failure).Log("driver command failed")
			backlog = append(backlog, TransportEvent{Kind: TransportClosed, Handle: out.IO.Handle, Err: failure})
		}
	}
	return backlog
}

func (d *domainLoop) emit(ev UIEvent) {
	if err := d.events.push(ev); err != nil {
		d.logger.Warning().Uint64("handle", uint64(ev.Handle)).Str("event", ev.Kind.String()).Err(err).Log("event dropped")
		return
	}
	d.signal.notify()
}
