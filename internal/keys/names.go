package keys

import "strings"

// Key symbols share the code space of the packed chord below the modifier
// bits. Printable keys use their uppercase Unicode code point; function
// and navigation keys sit above 0x01000000.
const (
	KeySpace uint32 = 0x20

	Key0 uint32 = 0x30
	Key1 uint32 = 0x31
	Key2 uint32 = 0x32
	Key3 uint32 = 0x33
	Key4 uint32 = 0x34
	Key5 uint32 = 0x35
	Key6 uint32 = 0x36
	Key7 uint32 = 0x37
	Key8 uint32 = 0x38
	Key9 uint32 = 0x39

	KeyA uint32 = 0x41
	KeyZ uint32 = 0x5a

	KeyEscape    uint32 = 0x01000000
	KeyTab       uint32 = 0x01000001
	KeyBacktab   uint32 = 0x01000002
	KeyBackspace uint32 = 0x01000003
	KeyReturn    uint32 = 0x01000004
	KeyEnter     uint32 = 0x01000005
	KeyInsert    uint32 = 0x01000006
	KeyDelete    uint32 = 0x01000007
	KeyPause     uint32 = 0x01000008
	KeyPrint     uint32 = 0x01000009
	KeySysReq    uint32 = 0x0100000a

	KeyHome     uint32 = 0x01000010
	KeyEnd      uint32 = 0x01000011
	KeyLeft     uint32 = 0x01000012
	KeyUp       uint32 = 0x01000013
	KeyRight    uint32 = 0x01000014
	KeyDown     uint32 = 0x01000015
	KeyPageUp   uint32 = 0x01000016
	KeyPageDown uint32 = 0x01000017

	KeyShift      uint32 = 0x01000020
	KeyControl    uint32 = 0x01000021
	KeyMeta       uint32 = 0x01000022
	KeyAlt        uint32 = 0x01000023
	KeyCapsLock   uint32 = 0x01000024
	KeyNumLock    uint32 = 0x01000025
	KeyScrollLock uint32 = 0x01000026

	KeyF1  uint32 = 0x01000030
	KeyF35 uint32 = 0x01000052

	KeySuperL uint32 = 0x01000053
	KeySuperR uint32 = 0x01000054
	KeyMenu   uint32 = 0x01000055

	KeyVolumeDown uint32 = 0x01000070
	KeyVolumeMute uint32 = 0x01000071
	KeyVolumeUp   uint32 = 0x01000072

	KeyMediaPlay     uint32 = 0x01000080
	KeyMediaStop     uint32 = 0x01000081
	KeyMediaPrevious uint32 = 0x01000082
	KeyMediaNext     uint32 = 0x01000083

	KeyMonBrightnessUp   uint32 = 0x010000b2
	KeyMonBrightnessDown uint32 = 0x010000b3
)

// modNames maps lowercase modifier token spellings to modifier bits.
var modNames = map[string]Modifiers{
	"shift":   ModShift,
	"ctrl":    ModControl,
	"control": ModControl,
	"alt":     ModAlt,
	"meta":    ModMeta,
	"super":   ModMeta,
	"win":     ModMeta,
	"num":     ModKeypad,
	"keypad":  ModKeypad,
}

// symNames is the canonical symbol → name table used for formatting.
var symNames = map[uint32]string{
	KeySpace:             "Space",
	KeyEscape:            "Esc",
	KeyTab:               "Tab",
	KeyBacktab:           "Backtab",
	KeyBackspace:         "Backspace",
	KeyReturn:            "Return",
	KeyEnter:             "Enter",
	KeyInsert:            "Ins",
	KeyDelete:            "Del",
	KeyPause:             "Pause",
	KeyPrint:             "Print",
	KeySysReq:            "SysReq",
	KeyHome:              "Home",
	KeyEnd:               "End",
	KeyLeft:              "Left",
	KeyUp:                "Up",
	KeyRight:             "Right",
	KeyDown:              "Down",
	KeyPageUp:            "PgUp",
	KeyPageDown:          "PgDown",
	KeyShift:             "Shift",
	KeyControl:           "Ctrl",
	KeyMeta:              "Meta",
	KeyAlt:               "Alt",
	KeyCapsLock:          "CapsLock",
	KeyNumLock:           "NumLock",
	KeyScrollLock:        "ScrollLock",
	KeySuperL:            "Super_L",
	KeySuperR:            "Super_R",
	KeyMenu:              "Menu",
	KeyVolumeDown:        "Volume Down",
	KeyVolumeMute:        "Volume Mute",
	KeyVolumeUp:          "Volume Up",
	KeyMediaPlay:         "Media Play",
	KeyMediaStop:         "Media Stop",
	KeyMediaPrevious:     "Media Previous",
	KeyMediaNext:         "Media Next",
	KeyMonBrightnessUp:   "Monitor Brightness Up",
	KeyMonBrightnessDown: "Monitor Brightness Down",
}

// nameSyms is the lowercase name → symbol table used for parsing, built
// from symNames plus the aliases below.
var nameSyms = map[string]uint32{}

var nameAliases = map[string]uint32{
	"escape":   KeyEscape,
	"ins":      KeyInsert,
	"insert":   KeyInsert,
	"del":      KeyDelete,
	"delete":   KeyDelete,
	"pgup":     KeyPageUp,
	"pgdown":   KeyPageDown,
	"pageup":   KeyPageUp,
	"pagedown": KeyPageDown,
}

func init() {
	for sym, name := range symNames {
		nameSyms[strings.ToLower(name)] = sym
	}
	for name, sym := range nameAliases {
		nameSyms[name] = sym
	}
}

// lookupSym resolves a key name token to its symbol. Single letters and
// digits resolve directly; F-keys resolve by number; everything else goes
// through the name table.
func lookupSym(name string) (uint32, bool) {
	if len(name) == 1 {
		ch := name[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint32(ch - 'a' + 'A'), true
		case ch >= 'A' && ch <= 'Z':
			return uint32(ch), true
		case ch >= '0' && ch <= '9':
			return uint32(ch), true
		case ch > 0x20 && ch < 0x7f:
			// Punctuation maps to its code point.
			return uint32(ch), true
		}
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "f") && len(name) >= 2 && len(name) <= 3 {
		n := 0
		for _, r := range lower[1:] {
			if r < '0' || r > '9' {
				n = 0
				break
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 35 {
			return KeyF1 + uint32(n-1), true
		}
	}
	sym, ok := nameSyms[lower]
	return sym, ok
}

func init() {
	// F-key names are generated, not listed.
	for i := uint32(0); i < 35; i++ {
		symNames[KeyF1+i] = "F" + itoa(int(i+1))
	}
	// Letters and digits format as themselves.
	for sym := KeyA; sym <= KeyZ; sym++ {
		symNames[sym] = string(rune(sym))
	}
	for sym := Key0; sym <= Key9; sym++ {
		symNames[sym] = string(rune(sym))
	}
}

func itoa(n int) string {
	if n >= 10 {
		return string(rune('0'+n/10)) + string(rune('0'+n%10))
	}
	return string(rune('0' + n))
}
