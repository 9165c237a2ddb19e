// Package capture defines the iterator boundary between the analysis
// pipeline and a concrete trace source. The pipeline never opens a file
// itself; it drives whatever FrameSource it is handed.
package capture

import (
	"errors"
	"io"

	"github.com/googlesky/vpnspotter/internal/model"
)

// ErrClosed is returned by Next after Close has been called.
var ErrClosed = errors.New("capture: source closed")

// FrameSource yields timestamped frames one at a time. Next returns io.EOF
// once the trace is exhausted.
type FrameSource interface {
	Next() (model.Frame, error)
	Close() error
}

// SliceSource is an in-memory FrameSource backed by a fixed slice of
// frames, used throughout the test suite to drive the pipeline without a
// real capture file on disk.
type SliceSource struct {
	frames []model.Frame
	pos    int
	closed bool
}

// NewSliceSource builds a FrameSource over frames, yielded in order.
func NewSliceSource(frames []model.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next() (model.Frame, error) {
	if s.closed {
		return model.Frame{}, ErrClosed
	}
	if s.pos >= len(s.frames) {
		return model.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
