package provider

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a single-pass cursor over generated text fragments.
//
// Next returns io.EOF once upstream signals completion or closes the
// connection. Close releases the upstream connection; it is safe to call more
// than once and from a goroutine other than the reader's, which is how a
// client disconnect interrupts a blocked Next.
type Stream interface {
	Next() (string, error)
	Close() error
}

const readSize = 4096

type bodyStream struct {
	body    io.ReadCloser
	dec     *Decoder
	buf     []byte
	pending []string
	err     error

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// NewBodyStream wraps an upstream response body. Malformed data lines are
// skipped and logged on logger.
func NewBodyStream(name Name, body io.ReadCloser, logger *slog.Logger) Stream {
	if logger == nil {
		logger = slog.Default()
	}
	dec := &Decoder{
		OnSkip: func(line string, err error) {
			logger.Warn("skipping malformed stream line",
				slog.String("provider", string(name)),
				slog.String("line", line),
				slog.Any("error", err),
			)
		},
	}
	return &bodyStream{
		body: body,
		dec:  dec,
		buf:  make([]byte, readSize),
	}
}

func (s *bodyStream) Next() (string, error) {
	for {
		if s.isClosed() {
			return "", ErrStreamClosed
		}
		if len(s.pending) > 0 {
			frag := s.pending[0]
			s.pending = s.pending[1:]
			return frag, nil
		}
		if s.err != nil {
			return "", s.err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			frags, done := s.dec.Feed(s.buf[:n])
			s.pending = append(s.pending, frags...)
			if done {
				s.err = io.EOF
				s.release()
				continue
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.pending = append(s.pending, s.dec.Flush()...)
			s.err = io.EOF
			s.release()
			continue
		}
		if s.isClosed() {
			s.err = ErrStreamClosed
		} else {
			s.err = err
		}
	}
}

// Close tears down the upstream body. Fragments already decoded but not
// returned are discarded.
func (s *bodyStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.release()
}

// release closes the body without hiding fragments that are still pending.
func (s *bodyStream) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *bodyStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
