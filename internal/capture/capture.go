// Package capture abstracts system-wide capture of key chords. A backend
// grabs single chords on behalf of the registry and feeds raw input
// events back through the Handler callbacks. Backends register
// themselves by platform name; the daemon picks one at startup.
package capture

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/llehouerou/kacceld/internal/keys"
)

// ErrBackendUnavailable means no registered backend matched the
// requested platform, or the platform refused the connection.
var ErrBackendUnavailable = errors.New("no capture backend available")

// Handler receives raw input events from a backend. The boolean results
// report whether the event was consumed. All methods must be called from
// a single goroutine.
type Handler interface {
	KeyPressed(chord keys.Chord) bool
	KeyReleased(chord keys.Chord) bool
	PointerPressed(buttons uint32) bool
	AxisTriggered(axis int32) bool

	// ResetModifierOnlyState is for events the backend observes but
	// will not forward; modifier-only latching must still clear.
	ResetModifierOnlyState()
}

// Backend is the platform capture contract. The registry's refcount
// discipline guarantees a backend sees at most one Grab(chord, true) and
// at most one matching Grab(chord, false) across a chord's lifetime.
type Backend interface {
	// Grab establishes or releases an exclusive system-wide grab of a
	// single chord. False means the chord cannot be captured.
	Grab(chord keys.Chord, grab bool) bool

	// SetEnabled pauses or resumes event delivery. The registry
	// releases every grab before disabling.
	SetEnabled(enabled bool)

	// SyncWindowingSystem flushes the windowing connection and waits,
	// so focus grabs by a notified client do not race the dispatch.
	SyncWindowingSystem()

	Close() error
}

// Factory creates a backend delivering events to h.
type Factory func(h Handler) (Backend, error)

var (
	factoriesMu sync.Mutex
	factories   = make(map[string]Factory)
)

// Register makes a backend available under a platform name. Backends
// call this from init.
func Register(platform string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[platform]; dup {
		panic(fmt.Sprintf("capture: backend %q registered twice", platform))
	}
	factories[platform] = f
}

// Platforms lists the registered backend names, sorted.
func Platforms() []string {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the backend registered for the platform.
func New(platform string, h Handler) (Backend, error) {
	factoriesMu.Lock()
	f, ok := factories[platform]
	factoriesMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: platform %q (have %v)", ErrBackendUnavailable, platform, Platforms())
	}
	b, err := f(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, platform, err)
	}
	return b, nil
}
