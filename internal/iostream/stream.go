// Package iostream wraps a net.Conn in a buffered, future-returning read
// and write model, generalized from Tornado's iostream.py.
package iostream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"sync"

	"loom/internal/ioloop"
)

const (
	defaultReadChunkSize = 64 * 1024
	defaultMaxBufferSize = 100 * 1024 * 1024
	smallWriteThreshold  = 4096
)

var (
	// ErrStreamClosed is returned to any pending or new operation once the
	// stream has been closed.
	ErrStreamClosed = errors.New("iostream: stream closed")
	// ErrBufferFull is returned (and the stream closed) when the read
	// buffer would exceed its configured maximum.
	ErrBufferFull = errors.New("iostream: read buffer exceeded max_buffer_size")
	// ErrUnsatisfiable is returned by ReadUntil/ReadUntilRegex when maxBytes is
	// exceeded before the read condition is satisfied.
	ErrUnsatisfiable = errors.New("iostream: read condition unsatisfiable within limit")
)

type readKind int

const (
	readUntilDelim readKind = iota
	readUntilRegex
	readNBytes
	readIntoBuffer
	readUntilClose
)

type pendingRead struct {
	kind     readKind
	delim    []byte
	re       *regexp.Regexp
	n        int
	partial  bool
	target   []byte // for ReadInto
	maxBytes int
	future   *ioloop.Future[[]byte]
	intoFut  *ioloop.Future[int]
}

type writeChunk struct {
	data   []byte
	future *ioloop.Future[struct{}]
}

// Stream is a buffered, non-blocking-style wrapper over a net.Conn. All
// reads and writes return an *ioloop.Future that resolves on the owning
// Loop once the underlying goroutine-driven I/O completes.
type Stream struct {
	loop   *ioloop.Loop
	conn   net.Conn
	logger *slog.Logger

	maxBufferSize int
	readChunkSize int

	mu        sync.Mutex
	readBuf   deque
	pending   *pendingRead
	writeCh   chan writeChunk
	closed    bool
	closeErr  error
	closeOnce sync.Once
	closeCb   func(error)
	readDone  chan struct{}
	writeDone chan struct{}
}

// New wraps conn for use on loop, starting its background read pump.
func New(loop *ioloop.Loop, conn net.Conn, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		loop:          loop,
		conn:          conn,
		logger:        logger,
		maxBufferSize: defaultMaxBufferSize,
		readChunkSize: defaultReadChunkSize,
		writeCh:       make(chan writeChunk, 64),
		readDone:      make(chan struct{}),
		writeDone:     make(chan struct{}),
	}
	go s.readPump()
	go s.writePump()
	return s
}

// SetMaxBufferSize overrides the default 100MiB read-buffer cap.
func (s *Stream) SetMaxBufferSize(n int) {
	s.mu.Lock()
	s.maxBufferSize = n
	s.mu.Unlock()
}

// SetNoDelay toggles TCP_NODELAY when the underlying conn supports it.
func (s *Stream) SetNoDelay(nodelay bool) error {
	if tc, ok := s.conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(nodelay)
	}
	return nil
}

// SetCloseCallback registers a callback invoked (on the loop) exactly once
// when the stream transitions to closed, with the triggering error (nil on
// a clean close initiated by Close()).
func (s *Stream) SetCloseCallback(cb func(error)) {
	s.mu.Lock()
	s.closeCb = cb
	s.mu.Unlock()
}

func (s *Stream) readPump() {
	defer close(s.readDone)
	buf := make([]byte, s.readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.loop.AddCallback(func() { s.onData(chunk) })
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.loop.AddCallback(func() { s.onReadError(io.EOF) })
			} else {
				s.loop.AddCallback(func() { s.onReadError(err) })
			}
			return
		}
	}
}

func (s *Stream) writePump() {
	defer close(s.writeDone)
	for wc := range s.writeCh {
		_, err := s.conn.Write(wc.data)
		if err != nil {
			fut := wc.future
			s.loop.AddCallback(func() { fut.SetException(err) })
			s.Close(err)
			for remaining := range s.writeCh {
				f := remaining.future
				s.loop.AddCallback(func() { f.SetException(err) })
			}
			return
		}
		fut := wc.future
		s.loop.AddCallback(func() { fut.SetResult(struct{}{}) })
	}
}

// onData runs on the loop goroutine (via AddCallback) and appends chunk to
// readBuf. The Read* methods also consume readBuf, so every access to it
// holds s.mu.
func (s *Stream) onData(chunk []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.readBuf.Append(chunk)
	if s.maxBufferSize > 0 && s.readBuf.Len() > s.maxBufferSize {
		s.mu.Unlock()
		s.Close(ErrBufferFull)
		return
	}
	s.tryResolvePending()
	s.mu.Unlock()
}

func (s *Stream) onReadError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if errors.Is(err, io.EOF) && s.pending != nil && s.pending.kind == readUntilClose {
		p := s.pending
		s.pending = nil
		data := append([]byte(nil), s.readBuf.Bytes()...)
		s.readBuf.Advance(s.readBuf.Len())
		s.mu.Unlock()
		p.future.SetResult(data)
		s.Close(nil)
		return
	}
	s.mu.Unlock()
	s.Close(err)
}

// tryResolvePending attempts to satisfy s.pending from s.readBuf. Caller
// must hold s.mu.
func (s *Stream) tryResolvePending() {
	p := s.pending
	if p == nil {
		return
	}
	switch p.kind {
	case readUntilDelim:
		if idx := s.readBuf.IndexEnd(p.delim); idx >= 0 {
			data := append([]byte(nil), s.readBuf.Bytes()[:idx]...)
			s.readBuf.Advance(idx)
			s.pending = nil
			p.future.SetResult(data)
			return
		}
	case readUntilRegex:
		if loc := p.re.FindIndex(s.readBuf.Bytes()); loc != nil {
			data := append([]byte(nil), s.readBuf.Bytes()[:loc[1]]...)
			s.readBuf.Advance(loc[1])
			s.pending = nil
			p.future.SetResult(data)
			return
		}
	case readNBytes:
		if s.readBuf.Len() >= p.n {
			data := append([]byte(nil), s.readBuf.Bytes()[:p.n]...)
			s.readBuf.Advance(p.n)
			s.pending = nil
			p.future.SetResult(data)
			return
		}
		if p.partial && s.readBuf.Len() > 0 {
			data := append([]byte(nil), s.readBuf.Bytes()...)
			s.readBuf.Advance(len(data))
			s.pending = nil
			p.future.SetResult(data)
			return
		}
	case readIntoBuffer:
		avail := s.readBuf.Len()
		if avail == 0 {
			return
		}
		if !p.partial && avail < len(p.target) {
			return
		}
		n := copy(p.target, s.readBuf.Bytes())
		s.readBuf.Advance(n)
		s.pending = nil
		p.intoFut.SetResult(n)
	}
	if s.maxBufferSize > 0 && p.maxBytes > 0 && s.readBuf.Len() >= p.maxBytes {
		s.pending = nil
		p.rejectUnsatisfiable()
	}
}

func (p *pendingRead) rejectUnsatisfiable() {
	if p.intoFut != nil {
		p.intoFut.SetException(ErrUnsatisfiable)
	} else {
		p.future.SetException(ErrUnsatisfiable)
	}
}

func (s *Stream) newPendingFuture() *ioloop.Future[[]byte] { return ioloop.NewFuture[[]byte]() }

// ReadUntil resolves once delim has been seen in the stream, with the
// result including delim itself.
func (s *Stream) ReadUntil(delim []byte, maxBytes int) *ioloop.Future[[]byte] {
	fut := s.newPendingFuture()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.SetException(ErrStreamClosed)
		return fut
	}
	s.pending = &pendingRead{kind: readUntilDelim, delim: delim, maxBytes: maxBytes, future: fut}
	s.tryResolvePending()
	s.mu.Unlock()
	return fut
}

// ReadUntilRegex resolves once re matches within the buffered data,
// mirroring Tornado's read_until_regex.
func (s *Stream) ReadUntilRegex(re *regexp.Regexp, maxBytes int) *ioloop.Future[[]byte] {
	fut := s.newPendingFuture()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.SetException(ErrStreamClosed)
		return fut
	}
	s.pending = &pendingRead{kind: readUntilRegex, re: re, maxBytes: maxBytes, future: fut}
	s.tryResolvePending()
	s.mu.Unlock()
	return fut
}

// ReadBytes resolves with exactly n bytes, or with whatever is available
// the first time any data arrives if partial is true.
func (s *Stream) ReadBytes(n int, partial bool) *ioloop.Future[[]byte] {
	fut := s.newPendingFuture()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.SetException(ErrStreamClosed)
		return fut
	}
	s.pending = &pendingRead{kind: readNBytes, n: n, partial: partial, future: fut}
	s.tryResolvePending()
	s.mu.Unlock()
	return fut
}

// ReadInto fills buf (fully, unless partial) and resolves with the number
// of bytes copied.
func (s *Stream) ReadInto(buf []byte, partial bool) *ioloop.Future[int] {
	fut := ioloop.NewFuture[int]()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.SetException(ErrStreamClosed)
		return fut
	}
	s.pending = &pendingRead{kind: readIntoBuffer, target: buf, partial: partial, intoFut: fut}
	s.tryResolvePending()
	s.mu.Unlock()
	return fut
}

// ReadUntilClose resolves with all remaining buffered and incoming data
// once the peer closes the connection.
func (s *Stream) ReadUntilClose() *ioloop.Future[[]byte] {
	fut := s.newPendingFuture()
	s.mu.Lock()
	if s.closed {
		data := append([]byte(nil), s.readBuf.Bytes()...)
		s.mu.Unlock()
		fut.SetResult(data)
		return fut
	}
	s.pending = &pendingRead{kind: readUntilClose, future: fut}
	s.mu.Unlock()
	return fut
}

// Write enqueues data for transmission and resolves once it has been
// handed to the kernel. Small chunks are copied so the
// caller may reuse its buffer immediately; large chunks are queued by
// reference. Completions are resolved strictly in submission order by the
// single writePump goroutine draining writeCh.
func (s *Stream) Write(data []byte) *ioloop.Future[struct{}] {
	fut := ioloop.NewFuture[struct{}]()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.SetException(ErrStreamClosed)
		return fut
	}
	s.mu.Unlock()

	buf := data
	if len(data) <= smallWriteThreshold {
		buf = append([]byte(nil), data...)
	}
	wc := writeChunk{data: buf, future: fut}
	select {
	case s.writeCh <- wc:
	default:
		go func() {
			defer func() { recover() }() // writeCh may be closed by a concurrent Close
			s.writeCh <- wc
		}()
	}
	return fut
}

// Close shuts down the stream, failing any pending read/write with err
// (nil for a clean, application-initiated close).
func (s *Stream) Close(err error) error {
	var cb func(error)
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeErr = err
		if s.pending != nil {
			p := s.pending
			s.pending = nil
			if p.intoFut != nil {
				p.intoFut.SetException(errOr(err, ErrStreamClosed))
			} else {
				p.future.SetException(errOr(err, ErrStreamClosed))
			}
		}
		close(s.writeCh)
		cb = s.closeCb
		s.mu.Unlock()
		s.conn.Close()
	})
	if cb != nil {
		s.loop.AddCallback(func() { cb(err) })
	}
	return nil
}

func errOr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// Closed reports whether the stream has been closed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StartTLS upgrades the connection to TLS, returning a Future of a new
// Stream wrapping the TLS conn once the handshake completes. The original Stream must not be used afterward.
func (s *Stream) StartTLS(ctx context.Context, config *tls.Config, server bool) *ioloop.Future[*Stream] {
	fut := ioloop.NewFuture[*Stream]()
	conn := s.conn
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true // hand off ownership of the raw conn; do not close it
		close(s.writeCh)
		s.mu.Unlock()
	})

	go func() {
		var tlsConn *tls.Conn
		if server {
			tlsConn = tls.Server(conn, config)
		} else {
			tlsConn = tls.Client(conn, config)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			fut.SetException(fmt.Errorf("iostream: tls handshake: %w", err))
			return
		}
		s.loop.AddCallback(func() {
			fut.SetResult(New(s.loop, tlsConn, s.logger))
		})
	}()
	return fut
}

// Peek returns a copy of the currently buffered, unconsumed bytes without
// removing them — useful for protocol sniffing before committing to a
// read mode.
func (s *Stream) Peek() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.readBuf.Bytes()...)
}
