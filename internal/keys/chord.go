// Package keys models key chords and multi-stroke key sequences.
//
// A chord is a single packed 32-bit value combining one key symbol with a
// set of modifier bits. A sequence is an ordered list of up to four chords
// and is the unit of binding and dispatch for the daemon.
package keys

import (
	"fmt"
	"strings"
)

// Modifiers is a bitset of modifier keys held together with a key symbol.
type Modifiers uint32

// Modifier bits. They occupy the high byte of a packed chord so a chord
// can be split into (symbol, modifiers) with simple masking.
const (
	ModShift   Modifiers = 0x02000000
	ModControl Modifiers = 0x04000000
	ModAlt     Modifiers = 0x08000000
	ModMeta    Modifiers = 0x10000000
	ModKeypad  Modifiers = 0x20000000

	// ModMask covers every modifier bit.
	ModMask Modifiers = 0xfe000000
)

// Chord is a single simultaneous key + modifiers event packed into one
// 32-bit value. The zero value means "no key".
type Chord uint32

// NewChord packs a key symbol and modifiers into a chord.
func NewChord(sym uint32, mods Modifiers) Chord {
	return Chord(sym&^uint32(ModMask)) | Chord(mods&ModMask)
}

// Sym returns the key symbol part of the chord.
func (c Chord) Sym() uint32 {
	return uint32(c) &^ uint32(ModMask)
}

// Mods returns the modifier bits of the chord.
func (c Chord) Mods() Modifiers {
	return Modifiers(c) & ModMask
}

// IsModifierOnly reports whether the chord carries modifier bits but no
// key symbol. Such chords trigger on release rather than press.
func (c Chord) IsModifierOnly() bool {
	return c.Sym() == 0 && c.Mods() != 0
}

// String formats the chord in the conventional human-readable form, e.g.
// "Meta+Ctrl+P". A modifier-only chord formats as its modifiers alone.
func (c Chord) String() string {
	var parts []string
	mods := c.Mods()
	if mods&ModMeta != 0 {
		parts = append(parts, "Meta")
	}
	if mods&ModControl != 0 {
		parts = append(parts, "Ctrl")
	}
	if mods&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if mods&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if mods&ModKeypad != 0 {
		parts = append(parts, "Num")
	}
	if sym := c.Sym(); sym != 0 {
		name, ok := symNames[sym]
		if !ok {
			name = fmt.Sprintf("0x%x", sym)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "+")
}

// ParseChord parses a "+"-separated chord token such as "Ctrl+Alt+M".
// Every token but the last must name a modifier; a token naming only
// modifiers yields a modifier-only chord.
func ParseChord(s string) (Chord, error) {
	tokens := strings.Split(s, "+")
	var mods Modifiers
	var sym uint32
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return 0, fmt.Errorf("empty token in chord %q", s)
		}
		if m, ok := modNames[strings.ToLower(tok)]; ok {
			mods |= m
			continue
		}
		if i != len(tokens)-1 {
			return 0, fmt.Errorf("unknown modifier %q in chord %q", tok, s)
		}
		code, ok := lookupSym(tok)
		if !ok {
			return 0, fmt.Errorf("unknown key %q in chord %q", tok, s)
		}
		sym = code
	}
	if sym == 0 && mods == 0 {
		return 0, fmt.Errorf("chord %q has neither key nor modifiers", s)
	}
	return NewChord(sym, mods), nil
}

// KeyToModifier maps a modifier key symbol to its modifier bit. Both Super
// symbols map to Meta; any non-modifier symbol maps to zero.
func KeyToModifier(sym uint32) Modifiers {
	switch sym {
	case KeyMeta, KeySuperL, KeySuperR:
		return ModMeta
	case KeyShift:
		return ModShift
	case KeyControl:
		return ModControl
	case KeyAlt:
		return ModAlt
	default:
		return 0
	}
}

// IsModifierSym reports whether sym is one of the modifier key symbols.
func IsModifierSym(sym uint32) bool {
	return KeyToModifier(sym) != 0
}

// Correct applies the platform chord corrections done before a chord
// enters the input state machine: the Super symbols fold to Meta, and
// SysReq folds to Alt+Print. The X representation of Alt+Print as SysReq
// makes multi-key sequences starting with that chord unreliable.
func Correct(c Chord) Chord {
	switch c.Sym() {
	case KeySuperL, KeySuperR:
		return NewChord(KeyMeta, c.Mods())
	case KeySysReq:
		return NewChord(KeyPrint, c.Mods()|ModAlt)
	default:
		return c
	}
}
