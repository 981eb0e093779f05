package slip

import (
	"errors"
	"fmt"
)

// RFC 1055 byte values.
const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// DefaultMaxMessageLength is the payload size limit advertised by the
// default protocol.
const DefaultMaxMessageLength = 256

var (
	// ErrConfig reports a malformed or conflicting protocol definition.
	ErrConfig = errors.New("invalid protocol definition")

	// ErrMalformedFrame reports an invalid escape sequence in a frame.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrBufferOverflow reports a partial frame that outgrew the
	// accumulation buffer before its terminator arrived.
	ErrBufferOverflow = errors.New("frame exceeds buffer capacity")
)

// EscapeRule maps a reserved payload byte to the second byte of its
// two-byte on-wire escape sequence.
type EscapeRule struct {
	Value       byte
	Replacement byte
}

// Protocol is a fully-specified SLIP framing definition. It is fixed
// for the lifetime of the encoder, decoder and reassembler sharing it.
type Protocol struct {
	End              byte
	Esc              byte
	MaxMessageLength int
	Rules            []EscapeRule
}

// ProtocolOption overrides a single field of the default protocol.
type ProtocolOption func(*protoBuilder)

type protoBuilder struct {
	proto    Protocol
	rulesSet bool
}

// WithEnd sets the frame terminator byte.
func WithEnd(b byte) ProtocolOption {
	return func(pb *protoBuilder) { pb.proto.End = b }
}

// WithEsc sets the escape byte.
func WithEsc(b byte) ProtocolOption {
	return func(pb *protoBuilder) { pb.proto.Esc = b }
}

// WithMaxMessageLength sets the payload size limit.
func WithMaxMessageLength(n int) ProtocolOption {
	return func(pb *protoBuilder) { pb.proto.MaxMessageLength = n }
}

// WithEscapeRule adds an escape rule. The first use replaces the
// default rule set, so callers overriding rules must supply rules for
// the terminator and the escape byte themselves.
func WithEscapeRule(value, replacement byte) ProtocolOption {
	return func(pb *protoBuilder) {
		if !pb.rulesSet {
			pb.proto.Rules = nil
			pb.rulesSet = true
		}
		pb.proto.Rules = append(pb.proto.Rules, EscapeRule{Value: value, Replacement: replacement})
	}
}

// DefaultProtocol returns the standard RFC 1055 definition:
// END 0xC0 escaped as 0xDB 0xDC, ESC 0xDB escaped as 0xDB 0xDD.
func DefaultProtocol() Protocol {
	return Protocol{
		End:              End,
		Esc:              Esc,
		MaxMessageLength: DefaultMaxMessageLength,
		Rules: []EscapeRule{
			{Value: End, Replacement: EscEnd},
			{Value: Esc, Replacement: EscEsc},
		},
	}
}

// NewProtocol builds a protocol from the defaults with the given
// overrides applied, then validates it. Construction fails with an
// ErrConfig-wrapped error; no partially-valid protocol is returned.
func NewProtocol(opts ...ProtocolOption) (Protocol, error) {
	pb := protoBuilder{proto: DefaultProtocol()}
	for _, opt := range opts {
		opt(&pb)
	}
	if err := pb.proto.validate(); err != nil {
		return Protocol{}, err
	}
	return pb.proto, nil
}

// validate checks that no byte value is used for two distinct roles
// and that the rule set covers both reserved bytes.
func (p Protocol) validate() error {
	if p.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: max message length %d", ErrConfig, p.MaxMessageLength)
	}
	if p.End == p.Esc {
		return fmt.Errorf("%w: end and escape bytes are both 0x%02X", ErrConfig, p.End)
	}
	if len(p.Rules) == 0 {
		return fmt.Errorf("%w: no escape rules", ErrConfig)
	}

	values := make(map[byte]bool, len(p.Rules))
	replacements := make(map[byte]bool, len(p.Rules))
	for _, r := range p.Rules {
		if values[r.Value] {
			return fmt.Errorf("%w: duplicate escape rule for 0x%02X", ErrConfig, r.Value)
		}
		values[r.Value] = true

		if replacements[r.Replacement] {
			return fmt.Errorf("%w: duplicate replacement byte 0x%02X", ErrConfig, r.Replacement)
		}
		replacements[r.Replacement] = true

		// A replacement equal to a reserved byte would reintroduce the
		// value that escaping exists to remove from the wire.
		if r.Replacement == p.End || r.Replacement == p.Esc {
			return fmt.Errorf("%w: replacement 0x%02X collides with a reserved byte", ErrConfig, r.Replacement)
		}
	}

	// Both reserved bytes must be escapable, otherwise encoded frames
	// could contain a bare terminator or a dangling escape.
	if !values[p.End] {
		return fmt.Errorf("%w: no escape rule for end byte 0x%02X", ErrConfig, p.End)
	}
	if !values[p.Esc] {
		return fmt.Errorf("%w: no escape rule for escape byte 0x%02X", ErrConfig, p.Esc)
	}

	return nil
}

// replacement returns the escape replacement for a payload byte, if
// the byte is covered by a rule.
func (p Protocol) replacement(b byte) (byte, bool) {
	for _, r := range p.Rules {
		if r.Value == b {
			return r.Replacement, true
		}
	}
	return 0, false
}

// value returns the payload byte a replacement decodes to, if the
// replacement is covered by a rule.
func (p Protocol) value(replacement byte) (byte, bool) {
	for _, r := range p.Rules {
		if r.Replacement == replacement {
			return r.Value, true
		}
	}
	return 0, false
}
