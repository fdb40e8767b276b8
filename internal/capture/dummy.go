package capture

import (
	"github.com/llehouerou/kacceld/internal/keys"
)

// Dummy is the test backend. It records grab calls instead of talking to
// a windowing system and lets tests inject events directly into the
// handler, mirroring what a real backend would deliver.
type Dummy struct {
	handler Handler
	enabled bool

	// Grabbed holds the refcount-visible grab state per chord: true
	// entries are currently held. GrabLog records every call in order
	// for balance checks.
	Grabbed map[keys.Chord]bool
	GrabLog []GrabCall

	// FailChords makes Grab refuse specific chords, simulating a
	// collision with another process.
	FailChords map[keys.Chord]bool
}

// GrabCall is one recorded Grab invocation.
type GrabCall struct {
	Chord keys.Chord
	On    bool
}

// NewDummy creates a test backend delivering events to h.
func NewDummy(h Handler) *Dummy {
	return &Dummy{
		handler:    h,
		Grabbed:    make(map[keys.Chord]bool),
		FailChords: make(map[keys.Chord]bool),
	}
}

func init() {
	Register("dummy", func(h Handler) (Backend, error) {
		return NewDummy(h), nil
	})
}

func (d *Dummy) Grab(chord keys.Chord, grab bool) bool {
	if grab && d.FailChords[chord] {
		return false
	}
	d.GrabLog = append(d.GrabLog, GrabCall{Chord: chord, On: grab})
	if grab {
		d.Grabbed[chord] = true
	} else {
		delete(d.Grabbed, chord)
	}
	return true
}

func (d *Dummy) SetEnabled(enabled bool) {
	d.enabled = enabled
}

func (d *Dummy) SyncWindowingSystem() {}

func (d *Dummy) Close() error { return nil }

// Balanced reports whether every chord saw a matched sequence of
// grab/release calls and nothing is still held.
func (d *Dummy) Balanced() bool {
	counts := make(map[keys.Chord]int)
	for _, call := range d.GrabLog {
		if call.On {
			counts[call.Chord]++
		} else {
			counts[call.Chord]--
		}
		if counts[call.Chord] < 0 || counts[call.Chord] > 1 {
			return false
		}
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// CheckKeyPressed injects a key press, as the windowing system would.
func (d *Dummy) CheckKeyPressed(chord keys.Chord) bool {
	return d.handler.KeyPressed(chord)
}

// CheckKeyReleased injects a key release.
func (d *Dummy) CheckKeyReleased(chord keys.Chord) bool {
	return d.handler.KeyReleased(chord)
}

// CheckPointerPressed injects a pointer button press.
func (d *Dummy) CheckPointerPressed(buttons uint32) bool {
	return d.handler.PointerPressed(buttons)
}

// CheckAxisTriggered injects a scroll axis event.
func (d *Dummy) CheckAxisTriggered(axis int32) bool {
	return d.handler.AxisTriggered(axis)
}
