package slip

import (
	"errors"
	"testing"
)

func TestNewProtocol_Defaults(t *testing.T) {
	p, err := NewProtocol()
	if err != nil {
		t.Fatalf("NewProtocol() error = %v", err)
	}

	if p.End != End {
		t.Errorf("End = 0x%02X, want 0x%02X", p.End, End)
	}
	if p.Esc != Esc {
		t.Errorf("Esc = 0x%02X, want 0x%02X", p.Esc, Esc)
	}
	if p.MaxMessageLength != DefaultMaxMessageLength {
		t.Errorf("MaxMessageLength = %d, want %d", p.MaxMessageLength, DefaultMaxMessageLength)
	}
	if len(p.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(p.Rules))
	}
	if p.Rules[0] != (EscapeRule{Value: End, Replacement: EscEnd}) {
		t.Errorf("Rules[0] = %+v, want END rule", p.Rules[0])
	}
	if p.Rules[1] != (EscapeRule{Value: Esc, Replacement: EscEsc}) {
		t.Errorf("Rules[1] = %+v, want ESC rule", p.Rules[1])
	}
}

func TestNewProtocol_PartialOverride(t *testing.T) {
	// Unset fields must keep their defaults.
	p, err := NewProtocol(WithMaxMessageLength(1024))
	if err != nil {
		t.Fatalf("NewProtocol error = %v", err)
	}
	if p.MaxMessageLength != 1024 {
		t.Errorf("MaxMessageLength = %d, want 1024", p.MaxMessageLength)
	}
	if p.End != End || p.Esc != Esc || len(p.Rules) != 2 {
		t.Errorf("defaults not preserved: %+v", p)
	}
}

func TestNewProtocol_EndEqualsEsc(t *testing.T) {
	_, err := NewProtocol(WithEnd(0xDB))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_DuplicateRuleValue(t *testing.T) {
	_, err := NewProtocol(
		WithEscapeRule(End, EscEnd),
		WithEscapeRule(Esc, EscEsc),
		WithEscapeRule(End, 0x42),
	)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_DuplicateReplacement(t *testing.T) {
	_, err := NewProtocol(
		WithEscapeRule(End, EscEnd),
		WithEscapeRule(Esc, EscEnd),
	)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_ReplacementCollidesWithEnd(t *testing.T) {
	// A replacement equal to the terminator would put a bare END on
	// the wire inside an escape sequence.
	_, err := NewProtocol(
		WithEscapeRule(End, End),
		WithEscapeRule(Esc, EscEsc),
	)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_MissingEndRule(t *testing.T) {
	_, err := NewProtocol(WithEscapeRule(Esc, EscEsc))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_MissingEscRule(t *testing.T) {
	_, err := NewProtocol(WithEscapeRule(End, EscEnd))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_InvalidMaxMessageLength(t *testing.T) {
	_, err := NewProtocol(WithMaxMessageLength(0))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol(max=0) error = %v, want ErrConfig", err)
	}

	_, err = NewProtocol(WithMaxMessageLength(-1))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("NewProtocol(max=-1) error = %v, want ErrConfig", err)
	}
}

func TestNewProtocol_ExtraRuleAllowed(t *testing.T) {
	// Escaping bytes beyond the reserved pair is legal.
	p, err := NewProtocol(
		WithEscapeRule(End, EscEnd),
		WithEscapeRule(Esc, EscEsc),
		WithEscapeRule(0x00, 0xDE),
	)
	if err != nil {
		t.Fatalf("NewProtocol error = %v", err)
	}
	if len(p.Rules) != 3 {
		t.Errorf("len(Rules) = %d, want 3", len(p.Rules))
	}
}
