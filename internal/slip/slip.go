// Package slip implements RFC 1055 SLIP framing: an escape/unescape
// codec plus an incremental reassembler that turns an arbitrarily
// chunked byte stream back into discrete payload messages.
package slip

import "fmt"

// Encode escapes every reserved byte in payload according to the
// protocol's rules. The terminator is NOT appended; senders append a
// single End byte (or use AppendFrame) so that layered flush logic
// cannot double-terminate a frame.
func (p Protocol) Encode(payload []byte) []byte {
	// Pre-allocate with some extra space for escapes
	result := make([]byte, 0, len(payload)+8)

	for _, b := range payload {
		if r, ok := p.replacement(b); ok {
			result = append(result, p.Esc, r)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// AppendFrame appends the complete on-wire form of payload to dst:
// the escaped payload followed by one terminator byte.
func (p Protocol) AppendFrame(dst, payload []byte) []byte {
	dst = append(dst, p.Encode(payload)...)
	dst = append(dst, p.End)
	return dst
}

// Decode reverses Encode on a single frame (terminator already
// stripped). The escape byte must be followed by a known replacement;
// anything else, including a trailing escape byte, fails with an
// ErrMalformedFrame-wrapped error and no payload.
func (p Protocol) Decode(frame []byte) ([]byte, error) {
	result := make([]byte, 0, len(frame))

	for i := 0; i < len(frame); i++ {
		b := frame[i]
		if b != p.Esc {
			result = append(result, b)
			continue
		}

		if i+1 >= len(frame) {
			return nil, fmt.Errorf("%w: escape byte at end of frame", ErrMalformedFrame)
		}
		i++
		v, ok := p.value(frame[i])
		if !ok {
			return nil, fmt.Errorf("%w: unknown escape sequence 0x%02X 0x%02X", ErrMalformedFrame, p.Esc, frame[i])
		}
		result = append(result, v)
	}

	return result, nil
}
