//go:build linux

package x11

import (
	"github.com/llehouerou/kacceld/internal/keys"
)

// X keysym values for the non-printable keys the daemon understands.
const (
	xkBackSpace  = 0xff08
	xkTab        = 0xff09
	xkReturn     = 0xff0d
	xkPause      = 0xff13
	xkScrollLock = 0xff14
	xkSysReq     = 0xff15
	xkEscape     = 0xff1b
	xkHome       = 0xff50
	xkLeft       = 0xff51
	xkUp         = 0xff52
	xkRight      = 0xff53
	xkDown       = 0xff54
	xkPageUp     = 0xff55
	xkPageDown   = 0xff56
	xkEnd        = 0xff57
	xkPrint      = 0xff61
	xkInsert     = 0xff63
	xkMenu       = 0xff67
	xkNumLock    = 0xff7f
	xkKPEnter    = 0xff8d
	xkF1         = 0xffbe
	xkShiftL     = 0xffe1
	xkShiftR     = 0xffe2
	xkControlL   = 0xffe3
	xkControlR   = 0xffe4
	xkCapsLock   = 0xffe5
	xkMetaL      = 0xffe7
	xkMetaR      = 0xffe8
	xkAltL       = 0xffe9
	xkAltR       = 0xffea
	xkSuperL     = 0xffeb
	xkSuperR     = 0xffec
	xkDelete     = 0xffff
	xkISOLeftTab = 0xfe20

	xkMonBrightnessUp   = 0x1008ff02
	xkMonBrightnessDown = 0x1008ff03
	xkAudioLowerVolume  = 0x1008ff11
	xkAudioMute         = 0x1008ff12
	xkAudioRaiseVolume  = 0x1008ff13
	xkAudioPlay         = 0x1008ff14
	xkAudioStop         = 0x1008ff15
	xkAudioPrev         = 0x1008ff16
	xkAudioNext         = 0x1008ff17
)

// keysymToSymTable maps X keysyms onto the daemon's key symbols for
// everything that is not a printable character.
var keysymToSymTable = map[uint32]uint32{
	xkBackSpace:  keys.KeyBackspace,
	xkTab:        keys.KeyTab,
	xkISOLeftTab: keys.KeyBacktab,
	xkReturn:     keys.KeyReturn,
	xkKPEnter:    keys.KeyEnter,
	xkPause:      keys.KeyPause,
	xkScrollLock: keys.KeyScrollLock,
	xkSysReq:     keys.KeySysReq,
	xkEscape:     keys.KeyEscape,
	xkHome:       keys.KeyHome,
	xkLeft:       keys.KeyLeft,
	xkUp:         keys.KeyUp,
	xkRight:      keys.KeyRight,
	xkDown:       keys.KeyDown,
	xkPageUp:     keys.KeyPageUp,
	xkPageDown:   keys.KeyPageDown,
	xkEnd:        keys.KeyEnd,
	xkPrint:      keys.KeyPrint,
	xkInsert:     keys.KeyInsert,
	xkMenu:       keys.KeyMenu,
	xkNumLock:    keys.KeyNumLock,
	xkCapsLock:   keys.KeyCapsLock,
	xkShiftL:     keys.KeyShift,
	xkShiftR:     keys.KeyShift,
	xkControlL:   keys.KeyControl,
	xkControlR:   keys.KeyControl,
	xkMetaL:      keys.KeyMeta,
	xkMetaR:      keys.KeyMeta,
	xkAltL:       keys.KeyAlt,
	xkAltR:       keys.KeyAlt,
	xkSuperL:     keys.KeySuperL,
	xkSuperR:     keys.KeySuperR,
	xkDelete:     keys.KeyDelete,

	xkMonBrightnessUp:   keys.KeyMonBrightnessUp,
	xkMonBrightnessDown: keys.KeyMonBrightnessDown,
	xkAudioLowerVolume:  keys.KeyVolumeDown,
	xkAudioMute:         keys.KeyVolumeMute,
	xkAudioRaiseVolume:  keys.KeyVolumeUp,
	xkAudioPlay:         keys.KeyMediaPlay,
	xkAudioStop:         keys.KeyMediaStop,
	xkAudioPrev:         keys.KeyMediaPrevious,
	xkAudioNext:         keys.KeyMediaNext,
}

var symToKeysymTable = map[uint32][]uint32{}

func init() {
	for ks, sym := range keysymToSymTable {
		symToKeysymTable[sym] = append(symToKeysymTable[sym], ks)
	}
}

// keysymToSym translates one X keysym to the daemon symbol space.
// Latin letters fold to their uppercase representation.
func keysymToSym(ks uint32) uint32 {
	switch {
	case ks >= 'a' && ks <= 'z':
		return ks - 'a' + 'A'
	case ks >= ' ' && ks <= '~':
		return ks
	case ks >= xkF1 && ks < xkF1+35:
		return keys.KeyF1 + (ks - xkF1)
	}
	return keysymToSymTable[ks]
}

// symToKeysyms lists the candidate X keysyms for a daemon symbol, most
// preferred first.
func symToKeysyms(sym uint32) []uint32 {
	switch {
	case sym >= 'A' && sym <= 'Z':
		// Keyboards map the lowercase form.
		return []uint32{sym - 'A' + 'a', sym}
	case sym >= ' ' && sym <= '~':
		return []uint32{sym}
	case sym >= keys.KeyF1 && sym <= keys.KeyF35:
		return []uint32{xkF1 + (sym - keys.KeyF1)}
	}
	return symToKeysymTable[sym]
}
