package registry

import (
	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/keys"
)

// The registry implements capture.Handler; backends feed raw events
// here. Modifier-only shortcuts fire on release, so the recognizer
// tracks whether only modifiers have been pressed since the last normal
// key.
var _ capture.Handler = (*Registry)(nil)

// KeyPressed feeds one key press into the state machine. The returned
// boolean tells the backend whether the event was consumed.
func (r *Registry) KeyPressed(chord keys.Chord) bool {
	if r.backend == nil {
		return false
	}
	chord = keys.Correct(chord)
	sym := chord.Sym()

	switch {
	case sym == 0:
		r.activeSequence = nil
		r.state = stateNormal
		return false
	case keys.IsModifierSym(sym):
		r.currentModifiers = chord.Mods() | keys.KeyToModifier(sym)
		r.state = statePressingModifierOnly
		return false
	default:
		r.currentModifiers = chord.Mods()
		r.state = stateNormal
		return r.processKey(chord)
	}
}

// KeyReleased feeds one key release into the state machine. Releasing
// the first modifier after a modifier-only press period is the trigger
// point for modifier-only shortcuts.
func (r *Registry) KeyReleased(chord keys.Chord) bool {
	if r.backend == nil {
		return false
	}
	chord = keys.Correct(chord)
	sym := chord.Sym()
	handled := false

	if mod := keys.KeyToModifier(sym); mod != 0 {
		switch r.state {
		case statePressingModifierOnly:
			handled = r.processKey(keys.NewChord(0, r.currentModifiers))
			r.currentModifiers &^= mod
			if r.currentModifiers == 0 {
				r.state = stateNormal
			} else {
				r.state = stateReleasingModifierOnly
			}
		case stateReleasingModifierOnly:
			r.currentModifiers &^= mod
			if r.currentModifiers == 0 {
				r.state = stateNormal
			}
		default:
			r.currentModifiers &^= mod
		}
	} else {
		r.state = stateNormal
	}

	if r.lastShortcut != nil {
		if s := r.resolve(*r.lastShortcut); s != nil {
			s.context.component.emitReleased(s)
		}
		r.lastShortcut = nil
	}
	return handled
}

// PointerPressed clears modifier-only latching so Meta+click does not
// fire a bare-Meta shortcut.
func (r *Registry) PointerPressed(buttons uint32) bool {
	_ = buttons
	r.state = stateNormal
	return false
}

// AxisTriggered clears modifier-only latching for scroll events.
func (r *Registry) AxisTriggered(axis int32) bool {
	_ = axis
	r.state = stateNormal
	return false
}

// ResetModifierOnlyState clears latching for events the backend
// observed but will not forward.
func (r *Registry) ResetModifierOnlyState() {
	r.state = stateNormal
}

// processKey runs the multi-stroke recognizer on one completed chord.
func (r *Registry) processKey(chord keys.Chord) bool {
	// Append to the rolling buffer, rotating out the oldest chord.
	if len(r.activeSequence) == keys.MaxSequenceLength {
		rotated := make(keys.Sequence, 0, keys.MaxSequenceLength)
		rotated = append(rotated, r.activeSequence[1:]...)
		r.activeSequence = append(rotated, chord)
	} else {
		r.activeSequence = append(r.activeSequence, chord)
	}

	// The buffer rotates instead of clearing, so every tail has to be
	// checked; the shortest match wins, biasing toward the most
	// recently completed sequence.
	var matched *Shortcut
	for length := 1; length <= len(r.activeSequence); length++ {
		tail := r.activeSequence[len(r.activeSequence)-length:]
		if s := r.findShortcutByKey(tail); s != nil {
			matched = s
			break
		}
	}

	if matched == nil {
		// Can happen for chords we grabbed under a different
		// representation than the one delivered. The sequence is kept
		// so later keys can complete it.
		r.log.Debug().Str("keys", r.activeSequence.String()).Msg("no binding for sequence")
		return false
	}
	if !matched.IsActive() {
		r.log.Debug().Str("action", matched.uniqueName).Msg("binding matched but inactive")
		return false
	}

	r.activeSequence = nil

	ref := matched.ref()
	if r.lastShortcut != nil && *r.lastShortcut != ref {
		if prev := r.resolve(*r.lastShortcut); prev != nil {
			prev.context.component.emitReleased(prev)
		}
	}

	// Flush the windowing system before notifying, so a focus grab by
	// the receiving client does not race our own grab release.
	if r.backend != nil {
		r.backend.SyncWindowingSystem()
	}

	matched.context.component.emitPressed(matched)
	r.lastShortcut = &ref
	return true
}
