//go:build linux

package x11

import (
	"fmt"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/keys"
)

// remapDebounce collapses bursts of keyboard mapping changes into one
// regrab pass. Remapping the whole keyboard with xmodmap arrives key by
// key; regrabbing per event used to take minutes.
const remapDebounce = 20 * time.Millisecond

func init() {
	capture.Register("x11", func(h capture.Handler) (capture.Backend, error) {
		return newBackend(h)
	})
}

// grabbedKey records what one chord resolved to at grab time, so a
// release and a regrab always match what the server saw.
type grabbedKey struct {
	keycodes []xproto.Keycode
	modMask  uint16
}

type backend struct {
	handler capture.Handler
	conn    *xgb.Conn
	root    xproto.Window

	mu      sync.Mutex
	enabled bool
	grabbed map[keys.Chord]grabbedKey

	// keymap state, rebuilt on MappingNotify.
	minKeycode xproto.Keycode
	maxKeycode xproto.Keycode
	perKeycode byte
	keysyms    []xproto.Keysym
	altMask    uint16
	metaMask   uint16
	numMask    uint16

	remapTimer *time.Timer
	done       chan struct{}
}

func newBackend(h capture.Handler) (*backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect X display: %w", err)
	}
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	b := &backend{
		handler:    h,
		conn:       conn,
		root:       screen.Root,
		grabbed:    make(map[keys.Chord]grabbedKey),
		minKeycode: setup.MinKeycode,
		maxKeycode: setup.MaxKeycode,
		done:       make(chan struct{}),
	}
	if err := b.loadKeymap(); err != nil {
		conn.Close()
		return nil, err
	}
	go b.run()
	return b, nil
}

// loadKeymap fetches the keysym table and derives which modifier masks
// carry Alt, Meta/Super and NumLock on this layout.
func (b *backend) loadKeymap() error {
	count := byte(b.maxKeycode - b.minKeycode + 1)
	mapping, err := xproto.GetKeyboardMapping(b.conn, b.minKeycode, count).Reply()
	if err != nil {
		return fmt.Errorf("keyboard mapping: %w", err)
	}
	b.keysyms = mapping.Keysyms
	b.perKeycode = mapping.KeysymsPerKeycode

	modMap, err := xproto.GetModifierMapping(b.conn).Reply()
	if err != nil {
		return fmt.Errorf("modifier mapping: %w", err)
	}
	b.altMask, b.metaMask, b.numMask = 0, 0, 0
	per := int(modMap.KeycodesPerModifier)
	for mod := 0; mod < 8; mod++ {
		mask := uint16(1) << mod
		for i := 0; i < per; i++ {
			kc := modMap.Keycodes[mod*per+i]
			if kc == 0 {
				continue
			}
			switch b.keysymAt(kc, 0) {
			case xkAltL, xkAltR:
				b.altMask |= mask
			case xkMetaL, xkMetaR, xkSuperL, xkSuperR:
				b.metaMask |= mask
			case xkNumLock:
				b.numMask |= mask
			}
		}
	}
	return nil
}

func (b *backend) keysymAt(kc xproto.Keycode, col int) uint32 {
	if kc < b.minKeycode || kc > b.maxKeycode {
		return 0
	}
	idx := int(kc-b.minKeycode)*int(b.perKeycode) + col
	if idx >= len(b.keysyms) {
		return 0
	}
	return uint32(b.keysyms[idx])
}

// keycodesFor resolves a daemon symbol to the keycodes producing it,
// and reports whether the symbol only appears shifted, in which case
// Shift must be added to the grab.
func (b *backend) keycodesFor(sym uint32) (codes []xproto.Keycode, shifted bool) {
	for _, ks := range symToKeysyms(sym) {
		for kc := b.minKeycode; kc >= b.minKeycode && kc <= b.maxKeycode; kc++ {
			if b.keysymAt(kc, 0) == ks {
				codes = append(codes, kc)
			} else if b.keysymAt(kc, 1) == ks {
				codes = append(codes, kc)
				shifted = true
			}
		}
		if len(codes) > 0 {
			return codes, shifted
		}
	}
	return nil, false
}

// modMaskFor translates chord modifiers to an X modifier mask.
func (b *backend) modMaskFor(mods keys.Modifiers) uint16 {
	var mask uint16
	if mods&keys.ModShift != 0 {
		mask |= xproto.ModMaskShift
	}
	if mods&keys.ModControl != 0 {
		mask |= xproto.ModMaskControl
	}
	if mods&keys.ModAlt != 0 {
		mask |= b.altMask
	}
	if mods&keys.ModMeta != 0 {
		mask |= b.metaMask
	}
	return mask
}

// stateToMods translates an event state mask back to chord modifiers.
func (b *backend) stateToMods(state uint16) keys.Modifiers {
	var mods keys.Modifiers
	if state&xproto.ModMaskShift != 0 {
		mods |= keys.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		mods |= keys.ModControl
	}
	if b.altMask != 0 && state&b.altMask != 0 {
		mods |= keys.ModAlt
	}
	if b.metaMask != 0 && state&b.metaMask != 0 {
		mods |= keys.ModMeta
	}
	return mods
}

// lockCombos enumerates the ignorable lock-modifier combinations every
// grab has to cover: CapsLock and NumLock in any state.
func (b *backend) lockCombos() []uint16 {
	combos := []uint16{0, xproto.ModMaskLock}
	if b.numMask != 0 {
		combos = append(combos, b.numMask, b.numMask|xproto.ModMaskLock)
	}
	return combos
}

// Grab establishes or releases a chord grab on the root window. Bare
// modifier chords cannot be grabbed on X; the registry knows not to
// ask.
func (b *backend) Grab(chord keys.Chord, grab bool) bool {
	sym := chord.Sym()
	if sym == 0 || keys.IsModifierSym(sym) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if grab {
		return b.grabLocked(chord)
	}
	return b.ungrabLocked(chord)
}

func (b *backend) grabLocked(chord keys.Chord) bool {
	if _, held := b.grabbed[chord]; held {
		return false
	}
	codes, shifted := b.keycodesFor(chord.Sym())
	if len(codes) == 0 {
		log.Debug().Str("component", "x11").Str("keys", chord.String()).Msg("no keycode for chord")
		return false
	}
	modMask := b.modMaskFor(chord.Mods())
	if shifted && chord.Mods()&keys.ModShift == 0 {
		modMask |= xproto.ModMaskShift
	}

	var done []xproto.Keycode
	for _, kc := range codes {
		failed := false
		for _, combo := range b.lockCombos() {
			err := xproto.GrabKeyChecked(b.conn, true, b.root, modMask|combo, kc,
				xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
			if err != nil {
				failed = true
				break
			}
		}
		if failed {
			for _, undo := range append(done, kc) {
				for _, combo := range b.lockCombos() {
					xproto.UngrabKey(b.conn, undo, b.root, modMask|combo)
				}
			}
			log.Debug().Str("component", "x11").Str("keys", chord.String()).Msg("grab refused by server")
			return false
		}
		done = append(done, kc)
	}

	b.grabbed[chord] = grabbedKey{keycodes: done, modMask: modMask}
	return true
}

func (b *backend) ungrabLocked(chord keys.Chord) bool {
	held, ok := b.grabbed[chord]
	if !ok {
		return false
	}
	for _, kc := range held.keycodes {
		for _, combo := range b.lockCombos() {
			xproto.UngrabKey(b.conn, kc, b.root, held.modMask|combo)
		}
	}
	delete(b.grabbed, chord)
	return true
}

// SetEnabled pauses or resumes event delivery to the handler. Grabs
// stay with the server; the registry releases them separately.
func (b *backend) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// SyncWindowingSystem round-trips the X connection so every request
// sent so far has been processed before dispatch continues.
func (b *backend) SyncWindowingSystem() {
	b.conn.Sync()
}

func (b *backend) Close() error {
	close(b.done)
	b.conn.Close()
	return nil
}

// run is the X event pump.
func (b *backend) run() {
	for {
		select {
		case <-b.done:
			return
		default:
		}
		ev, err := b.conn.WaitForEvent()
		if ev == nil && err == nil {
			return // connection gone
		}
		if err != nil {
			log.Debug().Str("component", "x11").Err(err).Msg("X event error")
			continue
		}
		b.mu.Lock()
		enabled := b.enabled
		b.mu.Unlock()

		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			if enabled {
				b.handler.KeyPressed(b.eventChord(e.Detail, e.State))
			}
		case xproto.KeyReleaseEvent:
			if enabled {
				b.handler.KeyReleased(b.eventChord(e.Detail, e.State))
			}
		case xproto.ButtonPressEvent:
			if enabled {
				b.handler.PointerPressed(uint32(e.Detail))
			}
		case xproto.MappingNotifyEvent:
			if e.Request == xproto.MappingKeyboard || e.Request == xproto.MappingModifier {
				b.scheduleRemap()
			}
		}
	}
}

// eventChord translates a raw key event into a packed chord. When the
// key is itself a modifier, its own bit is stripped from the state, so
// releasing Ctrl (whose event state still carries Control) yields the
// bare Ctrl key, not Ctrl+Ctrl.
func (b *backend) eventChord(kc xproto.Keycode, state uint16) keys.Chord {
	sym := keysymToSym(b.keysymAt(kc, 0))
	mods := b.stateToMods(state)
	if sym == 0 {
		if shiftedSym := keysymToSym(b.keysymAt(kc, 1)); shiftedSym != 0 {
			sym = shiftedSym
		}
	}
	if m := keys.KeyToModifier(sym); m != 0 {
		mods &^= m
	}
	return keys.NewChord(sym, mods)
}

// scheduleRemap debounces mapping changes, then reloads the keymap and
// regrabs every currently held chord with its fresh keycodes.
func (b *backend) scheduleRemap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remapTimer != nil {
		return
	}
	b.remapTimer = time.AfterFunc(remapDebounce, func() {
		b.mu.Lock()
		b.remapTimer = nil
		chords := make([]keys.Chord, 0, len(b.grabbed))
		for chord := range b.grabbed {
			chords = append(chords, chord)
			b.ungrabLocked(chord)
		}
		if err := b.loadKeymap(); err != nil {
			log.Warn().Str("component", "x11").Err(err).Msg("reloading keymap")
		}
		regrabbed := 0
		for _, chord := range chords {
			if b.grabLocked(chord) {
				regrabbed++
			}
		}
		b.mu.Unlock()
		log.Debug().Str("component", "x11").Int("chords", regrabbed).Msg("regrabbed after mapping change")
	})
}
