package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSeq(t *testing.T, s string) Sequence {
	t.Helper()
	seq, err := ParseSequence(s)
	require.NoError(t, err)
	return seq
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in   string
		sym  uint32
		mods Modifiers
	}{
		{"A", KeyA, 0},
		{"p", uint32('P'), 0},
		{"Ctrl+P", uint32('P'), ModControl},
		{"Meta+Shift+Print", KeyPrint, ModMeta | ModShift},
		{"Ctrl+Alt+M", uint32('M'), ModControl | ModAlt},
		{"F12", KeyF1 + 11, 0},
		{"Ctrl", 0, ModControl},
		{"Ctrl+Shift", 0, ModControl | ModShift},
		{"Volume Up", KeyVolumeUp, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseChord(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.sym, c.Sym())
			assert.Equal(t, tt.mods, c.Mods())
		})
	}
}

func TestParseChordErrors(t *testing.T) {
	for _, in := range []string{"", "Ctrl+", "Bogus", "Ctrl+Bogus", "Q+A"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseChord(in)
			assert.Error(t, err)
		})
	}
}

func TestChordStringRoundTrip(t *testing.T) {
	for _, in := range []string{"A", "Ctrl+P", "Meta+Ctrl+Alt+Shift+Z", "Ctrl", "Meta+F35", "PgUp"} {
		t.Run(in, func(t *testing.T) {
			c, err := ParseChord(in)
			require.NoError(t, err)
			back, err := ParseChord(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, back)
		})
	}
}

func TestParseSequence(t *testing.T) {
	seq := mustSeq(t, "Ctrl+K, Ctrl+L")
	require.Len(t, seq, 2)
	assert.Equal(t, ModControl, seq[0].Mods())
	assert.Equal(t, uint32('K'), seq[0].Sym())
	assert.Equal(t, uint32('L'), seq[1].Sym())

	_, err := ParseSequence("A,B,C,D,E")
	assert.Error(t, err)

	empty, err := ParseSequence("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestReverse(t *testing.T) {
	seq := mustSeq(t, "A,B,C")
	assert.True(t, Reverse(seq).Equal(mustSeq(t, "C,B,A")))
	assert.True(t, Reverse(nil).IsEmpty())
}

func TestCrop(t *testing.T) {
	seq := mustSeq(t, "A,B,C")
	assert.True(t, Crop(seq, 0).Equal(seq))
	assert.True(t, Crop(seq, 1).Equal(mustSeq(t, "B,C")))
	assert.True(t, Crop(seq, 3).IsEmpty())
	assert.True(t, Crop(seq, 5).IsEmpty())
}

func TestContains(t *testing.T) {
	abc := mustSeq(t, "Alt+B, Alt+F, Alt+G")
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"prefix shadows", "Alt+B, Alt+F", "Alt+B, Alt+F, Alt+G", true},
		{"suffix shadows", "Alt+F, Alt+G", "Alt+B, Alt+F, Alt+G", true},
		{"middle single", "Alt+F", "Alt+B, Alt+F, Alt+G", true},
		{"unrelated", "Ctrl+X", "Alt+B, Alt+F, Alt+G", false},
		{"equal is not contains", "Alt+B, Alt+F, Alt+G", "Alt+B, Alt+F, Alt+G", false},
		{"empty", "", "Alt+B", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustSeq(t, tt.a)
			b := mustSeq(t, tt.b)
			assert.Equal(t, tt.want, Contains(a, b))
		})
	}
	// The availability-denial predicate is symmetric under reversal.
	longer := mustSeq(t, "Ctrl+X, Alt+B, Alt+F, Alt+G")
	assert.True(t, Contains(abc, longer))
	assert.True(t, Contains(Reverse(abc), Reverse(longer)))
}

func TestMatchAny(t *testing.T) {
	list := []Sequence{
		mustSeq(t, "Alt+B, Alt+F, Alt+G"),
		nil,
	}
	assert.True(t, MatchAny(mustSeq(t, "Alt+B, Alt+F, Alt+G"), list))
	assert.True(t, MatchAny(mustSeq(t, "Alt+B, Alt+F"), list))
	assert.True(t, MatchAny(mustSeq(t, "Alt+B, Alt+F, Alt+G, Alt+X"), list))
	assert.True(t, MatchAny(mustSeq(t, "Alt+F, Alt+G"), list))
	assert.False(t, MatchAny(mustSeq(t, "Ctrl+T"), list))
	assert.False(t, MatchAny(nil, list))
}

func TestNormalize(t *testing.T) {
	shiftAsKey := Sequence{NewChord(KeyShift, 0)}
	norm := Normalize(shiftAsKey)
	require.Len(t, norm, 1)
	assert.True(t, norm[0].IsModifierOnly())
	assert.Equal(t, ModShift, norm[0].Mods())

	backtab := Sequence{NewChord(KeyBacktab, ModShift)}
	norm = Normalize(backtab)
	assert.Equal(t, KeyTab, norm[0].Sym())
	assert.Equal(t, ModShift, norm[0].Mods())

	// Idempotence.
	inputs := []Sequence{
		shiftAsKey,
		backtab,
		mustSeq(t, "Ctrl+P"),
		{NewChord(KeyControl, ModAlt)},
		mustSeq(t, "Ctrl+K, Ctrl+L"),
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.True(t, once.Equal(Normalize(once)), "normalize not idempotent for %v", in)
	}
}

func TestCorrect(t *testing.T) {
	c := Correct(NewChord(KeySuperL, 0))
	assert.Equal(t, KeyMeta, c.Sym())

	c = Correct(NewChord(KeySysReq, ModShift))
	assert.Equal(t, KeyPrint, c.Sym())
	assert.Equal(t, ModShift|ModAlt, c.Mods())
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "none", FormatList(nil))
	list := []Sequence{mustSeq(t, "Ctrl+T"), mustSeq(t, "Meta+E")}
	assert.Equal(t, "Ctrl+T;Meta+E", FormatList(list))

	parsed, err := ParseList("Ctrl+T;Meta+E")
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, parsed[0].Equal(list[0]))

	parsed, err = ParseList("none")
	require.NoError(t, err)
	assert.Empty(t, parsed)

	_, err = ParseList("Ctrl+Bogus")
	assert.Error(t, err)
}
