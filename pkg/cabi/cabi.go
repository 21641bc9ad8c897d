/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package cabi is the handle-based surface that a C export layer sits on.
//
// Every object crossing the boundary is named by an integer ID: contexts,
// streams, and delivered tweets. Strings cross as ByteSlice, which has the
// layout of
//
//	typedef struct { const uint8_t *bytes; size_t length; } ByteSlice;
//
// A tweet handed to a callback stays valid, along with the slices read from
// it, until TweetFree.
package cabi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

var (
	ErrUnknownContext = errors.New("cabi: unknown context")
	ErrUnknownStream  = errors.New("cabi: unknown stream")
)

type (
	ContextID uint32
	StreamID  uint32
	TweetID   uint64
)

// ByteSlice borrows bytes owned by this package.
type ByteSlice struct {
	Bytes  *byte
	Length uintptr
}

// SliceOf borrows b. The caller keeps b alive.
func SliceOf(b []byte) ByteSlice {
	if len(b) == 0 {
		return ByteSlice{}
	}
	return ByteSlice{Bytes: &b[0], Length: uintptr(len(b))}
}

// Slice returns the borrowed bytes without copying.
func (b ByteSlice) Slice() []byte {
	if b.Bytes == nil || b.Length == 0 {
		return nil
	}
	return unsafe.Slice(b.Bytes, b.Length)
}

// String copies the borrowed bytes.
func (b ByteSlice) String() string {
	return string(b.Slice())
}

// Config carries the credentials of a new stream.
type Config struct {
	ConsumerKey    ByteSlice
	ConsumerSecret ByteSlice
	Token          ByteSlice
	TokenSecret    ByteSlice
}

// TweetCallback receives a tweet on the host loop's thread. The tweet must
// be released with TweetFree.
type TweetCallback func(t TweetID)

type ctxEntry struct {
	fc       *tweetfeed.FeedContext
	defaults tweetfeed.StreamConfig

	mu        sync.Mutex
	callbacks map[tweetfeed.Handle]TweetCallback
}

type stream struct {
	ctx    ContextID
	handle tweetfeed.Handle
}

type tweet struct {
	userName []byte
	body     []byte
}

var (
	contextSeq atomic.Uint32
	streamSeq  atomic.Uint32
	tweetSeq   atomic.Uint64

	contexts sync.Map // ContextID -> *ctxEntry
	streams  sync.Map // StreamID -> stream
	tweets   sync.Map // TweetID -> *tweet
)

// ContextNew creates a feed context woken through factory. defaults supply
// the endpoint and track terms of every stream created in it.
func ContextNew(factory tweetfeed.WakeupSignalFactory, defaults tweetfeed.StreamConfig, opts ...tweetfeed.Option) (ContextID, error) {
	fc, err := tweetfeed.New(factory, opts...)
	if err != nil {
		return 0, err
	}
	c := &ctxEntry{fc: fc, defaults: defaults, callbacks: make(map[tweetfeed.Handle]TweetCallback)}
	id := ContextID(contextSeq.Add(1))
	contexts.Store(id, c)
	return id, nil
}

// ContextDestroy closes the context and forgets its streams. Tweets already
// delivered stay valid until freed.
func ContextDestroy(id ContextID) error {
	v, ok := contexts.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownContext, id)
	}
	streams.Range(func(k, v any) bool {
		if v.(stream).ctx == id {
			streams.Delete(k)
		}
		return true
	})
	return v.(*ctxEntry).fc.Close()
}

// StreamNew creates a stream in ctx with the given credentials.
func StreamNew(ctx ContextID, cfg Config) (StreamID, error) {
	c, err := lookupContext(ctx)
	if err != nil {
		return 0, err
	}
	sc := c.defaults
	sc.Track = append([]string(nil), c.defaults.Track...)
	sc.Credentials = tweetfeed.Credentials{
		ConsumerKey:    cfg.ConsumerKey.String(),
		ConsumerSecret: cfg.ConsumerSecret.String(),
		Token:          cfg.Token.String(),
		TokenSecret:    cfg.TokenSecret.String(),
	}
	h, err := c.fc.StreamCreate(sc)
	if err != nil {
		return 0, err
	}
	id := StreamID(streamSeq.Add(1))
	streams.Store(id, stream{ctx: ctx, handle: h})
	return id, nil
}

// StreamStart begins delivery of tweets for id to cb.
func StreamStart(id StreamID, cb TweetCallback) error {
	s, c, err := lookupStream(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if cb != nil {
		c.callbacks[s.handle] = cb
	}
	c.mu.Unlock()
	return c.fc.StreamStart(s.handle, c.dispatch)
}

// StreamDestroy ends the stream. Tweets for it not yet delivered are
// dropped.
func StreamDestroy(id StreamID) error {
	s, c, err := lookupStream(id)
	if err != nil {
		return err
	}
	streams.Delete(id)
	c.mu.Lock()
	delete(c.callbacks, s.handle)
	c.mu.Unlock()
	return c.fc.StreamDestroy(s.handle)
}

// dispatch runs on the host loop's thread and routes by handle.
func (c *ctxEntry) dispatch(h tweetfeed.Handle, t tweetfeed.Tweet) {
	c.mu.Lock()
	cb := c.callbacks[h]
	c.mu.Unlock()
	if cb == nil {
		return
	}
	id := TweetID(tweetSeq.Add(1))
	tweets.Store(id, &tweet{userName: []byte(t.UserName), body: []byte(t.Body)})
	cb(id)
}

// TweetUserName borrows the author of t. It is empty for freed tweets.
func TweetUserName(t TweetID) ByteSlice {
	if v, ok := tweets.Load(t); ok {
		return SliceOf(v.(*tweet).userName)
	}
	return ByteSlice{}
}

// TweetBody borrows the text of t. It is empty for freed tweets.
func TweetBody(t TweetID) ByteSlice {
	if v, ok := tweets.Load(t); ok {
		return SliceOf(v.(*tweet).body)
	}
	return ByteSlice{}
}

// TweetFree releases t. Freeing twice is harmless.
func TweetFree(t TweetID) {
	tweets.Delete(t)
}

// Counts reports live objects.
type Counts struct {
	Contexts int
	Streams  int
	Tweets   int
}

// Live counts the objects not yet destroyed or freed.
func Live() Counts {
	return Counts{
		Contexts: count(&contexts),
		Streams:  count(&streams),
		Tweets:   count(&tweets),
	}
}

func count(m *sync.Map) int {
	n := 0
	m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func lookupContext(id ContextID) (*ctxEntry, error) {
	v, ok := contexts.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	}
	return v.(*ctxEntry), nil
}

func lookupStream(id StreamID) (stream, *ctxEntry, error) {
	v, ok := streams.Load(id)
	if !ok {
		return stream{}, nil, fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	s := v.(stream)
	c, err := lookupContext(s.ctx)
	if err != nil {
		return stream{}, nil, err
	}
	return s, c, nil
}
