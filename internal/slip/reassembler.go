package slip

import (
	"bytes"
	"fmt"
)

// DefaultBufferSize is the accumulation buffer capacity of a
// reassembler: the largest escaped partial frame it can hold.
const DefaultBufferSize = 10 * 1024

// Stats is a snapshot of a reassembler's frame counters. Malformed and
// overflowed frames are dropped without a message event, so the
// counters are the only record that data was lost.
type Stats struct {
	Messages    uint64
	EmptyFrames uint64
	Malformed   uint64
	Overflows   uint64
}

// Reassembler converts an arbitrarily chunked incoming byte stream
// into decoded messages. It holds at most one pending partial frame
// between Feed calls, in a fixed-capacity buffer owned by the
// instance. Not safe for concurrent use.
type Reassembler struct {
	proto Protocol
	buf   []byte
	w     int
	// skip discards input up to the next terminator after an
	// overflowed frame, so the stream can resynchronize.
	skip  bool
	stats Stats
}

// ReassemblerOption overrides a reassembler construction default.
type ReassemblerOption func(*Reassembler)

// WithBufferSize sets the accumulation buffer capacity in bytes.
func WithBufferSize(n int) ReassemblerOption {
	return func(r *Reassembler) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewReassembler creates a reassembler for the given protocol with an
// empty accumulation buffer of DefaultBufferSize.
func NewReassembler(p Protocol, opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{
		proto: p,
		buf:   make([]byte, DefaultBufferSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed consumes one incoming chunk and returns the messages completed
// by it, in terminator arrival order. A chunk may complete any number
// of frames, including zero (a partial frame is buffered until more
// data arrives). Malformed frames are dropped silently and counted.
//
// If a partial frame outgrows the buffer, Feed drops it, counts the
// overflow, and returns an ErrBufferOverflow-wrapped error alongside
// any messages already completed in the same call; input is then
// discarded until the next terminator so that the following frame
// decodes cleanly.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	var msgs [][]byte
	var feedErr error

	for len(chunk) > 0 {
		// The terminator can never appear unescaped inside a
		// correctly-encoded frame, so a literal scan is unambiguous.
		e := bytes.IndexByte(chunk, r.proto.End)
		if e < 0 {
			if err := r.accumulate(chunk); err != nil {
				feedErr = err
			}
			return msgs, feedErr
		}

		if e > 0 {
			if err := r.accumulate(chunk[:e]); err != nil {
				feedErr = err
			}
		}

		switch {
		case r.skip:
			// Terminator of the overflowed frame; resynchronized.
			r.skip = false
		case r.w > 0:
			if msg, err := r.proto.Decode(r.buf[:r.w]); err != nil {
				r.stats.Malformed++
			} else {
				msgs = append(msgs, msg)
				r.stats.Messages++
			}
		default:
			// Terminator with nothing accumulated: zero-length
			// frames are ignored.
			r.stats.EmptyFrames++
		}
		r.w = 0

		chunk = chunk[e+1:]
	}

	return msgs, feedErr
}

// accumulate appends a terminator-free fragment to the pending frame.
func (r *Reassembler) accumulate(frag []byte) error {
	if r.skip {
		return nil
	}
	if r.w+len(frag) > len(r.buf) {
		r.w = 0
		r.skip = true
		r.stats.Overflows++
		return fmt.Errorf("%w: partial frame exceeds %d bytes", ErrBufferOverflow, len(r.buf))
	}
	copy(r.buf[r.w:], frag)
	r.w += len(frag)
	return nil
}

// Pending returns the size in bytes of the buffered partial frame.
func (r *Reassembler) Pending() int {
	return r.w
}

// Reset discards any buffered partial frame and clears the overflow
// resynchronization state. Counters are not reset.
func (r *Reassembler) Reset() {
	r.w = 0
	r.skip = false
}

// Stats returns a snapshot of the frame counters.
func (r *Reassembler) Stats() Stats {
	return r.stats
}
