// Package framer ties a transport to the SLIP codec: it frames
// outbound payloads for transmission and pumps inbound chunks through
// a reassembler, delivering decoded messages in arrival order.
package framer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tosscaster/slipwire/internal/slip"
)

// DefaultReadChunkSize is the size of a single transport read.
const DefaultReadChunkSize = 1024

// DefaultQueueSize is the decoded-message channel capacity.
const DefaultQueueSize = 16

// Transport is the capability a framer needs from its link: raw
// writes, chunked reads in arrival order, and a drain signal that
// completes once all written bytes are on the wire.
type Transport interface {
	io.ReadWriteCloser
	Drain() error
}

// Recorder observes frame-level events. Implementations must be cheap;
// they are called from the read pump.
type Recorder interface {
	MessageDecoded(size int)
	FrameDropped()
	BufferOverflow()
}

type nopRecorder struct{}

func (nopRecorder) MessageDecoded(int) {}
func (nopRecorder) FrameDropped()      {}
func (nopRecorder) BufferOverflow()    {}

// Framer owns one pending-frame reassembler and a message channel for
// a single transport. Send may be called from any goroutine; Run must
// be called at most once.
type Framer struct {
	tr        Transport
	proto     slip.Protocol
	reasm     *slip.Reassembler
	log       zerolog.Logger
	rec       Recorder
	msgs      chan []byte
	readChunk int
	bufSize   int
}

// Option overrides a framer construction default.
type Option func(*Framer)

// WithProtocol sets the framing protocol. Defaults to RFC 1055.
func WithProtocol(p slip.Protocol) Option {
	return func(f *Framer) { f.proto = p }
}

// WithLogger sets the diagnostic logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Framer) { f.log = log }
}

// WithRecorder sets the frame event recorder.
func WithRecorder(rec Recorder) Option {
	return func(f *Framer) {
		if rec != nil {
			f.rec = rec
		}
	}
}

// WithBufferSize sets the reassembler's accumulation buffer capacity.
func WithBufferSize(n int) Option {
	return func(f *Framer) { f.bufSize = n }
}

// WithQueueSize sets the decoded-message channel capacity.
func WithQueueSize(n int) Option {
	return func(f *Framer) {
		if n > 0 {
			f.msgs = make(chan []byte, n)
		}
	}
}

// WithReadChunkSize sets the size of a single transport read.
func WithReadChunkSize(n int) Option {
	return func(f *Framer) {
		if n > 0 {
			f.readChunk = n
		}
	}
}

// New creates a framer for the given transport.
func New(tr Transport, opts ...Option) *Framer {
	f := &Framer{
		tr:        tr,
		proto:     slip.DefaultProtocol(),
		log:       zerolog.Nop(),
		rec:       nopRecorder{},
		msgs:      make(chan []byte, DefaultQueueSize),
		readChunk: DefaultReadChunkSize,
		bufSize:   slip.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.reasm = slip.NewReassembler(f.proto, slip.WithBufferSize(f.bufSize))
	return f
}

// Protocol returns the framing protocol in use.
func (f *Framer) Protocol() slip.Protocol {
	return f.proto
}

// Send frames payload and writes it to the transport as a single
// write. Transport errors are returned unmodified.
func (f *Framer) Send(payload []byte) error {
	if len(payload) > f.proto.MaxMessageLength {
		return fmt.Errorf("payload of %d bytes exceeds max message length %d",
			len(payload), f.proto.MaxMessageLength)
	}

	frame := f.proto.AppendFrame(nil, payload)
	if _, err := f.tr.Write(frame); err != nil {
		return err
	}
	return nil
}

// SendAndDrain sends payload and blocks until the transport reports
// the bytes transmitted.
func (f *Framer) SendAndDrain(payload []byte) error {
	if err := f.Send(payload); err != nil {
		return err
	}
	return f.tr.Drain()
}

// Messages returns the decoded message channel. Messages appear in
// strict frame arrival order. The channel is closed when Run returns.
func (f *Framer) Messages() <-chan []byte {
	return f.msgs
}

// Stats returns a snapshot of the reassembler's frame counters.
func (f *Framer) Stats() slip.Stats {
	return f.reasm.Stats()
}

// Run reads the transport until ctx is cancelled, the transport
// reports EOF, or a read fails. Each chunk is fully reassembled before
// the next read; dropped frames and overflows are logged and recorded
// but do not stop the pump. The message channel is closed on return.
func (f *Framer) Run(ctx context.Context) error {
	defer close(f.msgs)

	buf := make([]byte, f.readChunk)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := f.tr.Read(buf)
		if n > 0 {
			if derr := f.deliver(ctx, buf[:n]); derr != nil {
				return derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// deliver feeds one chunk through the reassembler and pushes the
// completed messages downstream.
func (f *Framer) deliver(ctx context.Context, chunk []byte) error {
	before := f.reasm.Stats()
	msgs, err := f.reasm.Feed(chunk)
	after := f.reasm.Stats()

	for i := before.Malformed; i < after.Malformed; i++ {
		f.rec.FrameDropped()
		f.log.Debug().Msg("dropped malformed frame")
	}
	for i := before.Overflows; i < after.Overflows; i++ {
		f.rec.BufferOverflow()
	}
	if err != nil {
		f.log.Warn().Err(err).Msg("dropped oversized frame, waiting for next terminator")
	}

	for _, msg := range msgs {
		select {
		case f.msgs <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
		f.rec.MessageDecoded(len(msg))
	}
	return nil
}
