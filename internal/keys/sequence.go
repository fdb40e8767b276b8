package keys

import (
	"fmt"
	"slices"
	"strings"
)

// MaxSequenceLength is the maximum number of chords in one sequence.
const MaxSequenceLength = 4

// Sequence is an ordered list of 1–4 chords. The empty sequence is a
// distinct value meaning "unbound".
type Sequence []Chord

// String formats the sequence as its chord tokens joined by ", ", or the
// empty string for the unbound sequence.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// IsEmpty reports whether the sequence is unbound.
func (s Sequence) IsEmpty() bool {
	return len(s) == 0
}

// Equal reports chord-wise equality.
func (s Sequence) Equal(other Sequence) bool {
	return slices.Equal(s, other)
}

// ParseSequence parses a comma-separated multi-stroke token such as
// "Ctrl+K,Ctrl+L". The empty string parses to the unbound sequence.
func ParseSequence(s string) (Sequence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, ",")
	if len(tokens) > MaxSequenceLength {
		return nil, fmt.Errorf("sequence %q has more than %d chords", s, MaxSequenceLength)
	}
	seq := make(Sequence, 0, len(tokens))
	for _, tok := range tokens {
		chord, err := ParseChord(strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		seq = append(seq, chord)
	}
	return seq, nil
}

// Reverse returns a new sequence with the chord order reversed.
func Reverse(s Sequence) Sequence {
	out := make(Sequence, len(s))
	for i, c := range s {
		out[len(s)-i-1] = c
	}
	return out
}

// Crop drops the first n chords. Cropping by less than one returns the
// sequence unchanged; cropping by the length or more returns empty.
func Crop(s Sequence, n int) Sequence {
	if n < 1 {
		return s
	}
	if len(s) <= n {
		return nil
	}
	return slices.Clone(s[n:])
}

// isStrictPrefix reports whether a is a proper prefix of b.
func isStrictPrefix(a, b Sequence) bool {
	return len(a) < len(b) && slices.Equal(a, b[:len(a)])
}

// Contains reports whether a occurs as a contiguous sub-sequence of b,
// checked in both forward and reverse chord order so sequences that
// partially shadow from either end are detected.
func Contains(a, b Sequence) bool {
	minLen := min(len(a), len(b))
	if minLen == 0 {
		return false
	}
	for i := 0; i+minLen <= len(b); i++ {
		cropped := Crop(b, i)
		if isStrictPrefix(a, cropped) || isStrictPrefix(Reverse(a), Reverse(cropped)) {
			return true
		}
	}
	return false
}

// MatchAny reports whether key exactly equals, contains, or is contained
// by any non-empty sequence in list. This is the sole predicate the
// availability check is built on.
func MatchAny(key Sequence, list []Sequence) bool {
	for _, other := range list {
		if other.IsEmpty() {
			continue
		}
		if key.Equal(other) || Contains(key, other) || Contains(other, key) {
			return true
		}
	}
	return false
}

// Normalize canonicalizes each chord: a modifier key appearing as the key
// symbol collapses to the corresponding modifier bit, and Shift+Backtab
// rewrites to Shift+Tab. Normalization is idempotent.
func Normalize(s Sequence) Sequence {
	if len(s) == 0 {
		return s
	}
	out := make(Sequence, len(s))
	for i, c := range s {
		sym := c.Sym()
		mods := c.Mods()
		if mods&ModShift != 0 && (sym == KeyBacktab || sym == KeyTab) {
			out[i] = NewChord(KeyTab, mods)
			continue
		}
		if m := keySymToModifier(sym); m != 0 {
			out[i] = NewChord(0, mods|m)
			continue
		}
		out[i] = c
	}
	return out
}

// keySymToModifier maps the four plain modifier symbols to their bits.
// Unlike KeyToModifier it leaves the Super symbols alone; those fold to
// Meta during event correction, not during normalization.
func keySymToModifier(sym uint32) Modifiers {
	switch sym {
	case KeyShift:
		return ModShift
	case KeyControl:
		return ModControl
	case KeyAlt:
		return ModAlt
	case KeyMeta:
		return ModMeta
	default:
		return 0
	}
}

// ListSeparator separates sequences in a persisted key list.
const ListSeparator = ";"

// noneToken encodes the empty key list on disk. A list is empty iff it
// serializes to this token, never to the empty string.
const noneToken = "none"

// FormatList serializes a key list. The empty list encodes as "none".
func FormatList(list []Sequence) string {
	if len(list) == 0 {
		return noneToken
	}
	parts := make([]string, len(list))
	for i, s := range list {
		if s.IsEmpty() {
			parts[i] = noneToken
			continue
		}
		parts[i] = s.String()
	}
	return strings.Join(parts, ListSeparator)
}

// ParseList parses a persisted key list. Malformed sequences are reported
// so callers can skip them with a warning.
func ParseList(s string) ([]Sequence, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == noneToken {
		return nil, nil
	}
	var list []Sequence
	for _, tok := range strings.Split(s, ListSeparator) {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == noneToken {
			continue
		}
		seq, err := ParseSequence(tok)
		if err != nil {
			return nil, err
		}
		list = append(list, seq)
	}
	return list, nil
}
