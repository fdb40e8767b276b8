// Package x11 captures key chords on an X display. Chords are grabbed
// on the root window for every combination of the lock modifiers, and
// keyboard remapping events trigger a debounced regrab of everything
// currently held.
package x11
