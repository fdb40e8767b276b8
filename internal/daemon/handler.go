package daemon

import (
	"github.com/llehouerou/kacceld/internal/capture"
	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/registry"
)

// loopHandler bridges backend event goroutines onto the daemon loop, so
// the registry's state machine only ever runs single-threaded.
type loopHandler struct {
	loop *Loop
	reg  *registry.Registry
}

var _ capture.Handler = (*loopHandler)(nil)

func (h *loopHandler) KeyPressed(chord keys.Chord) bool {
	var handled bool
	h.loop.Call(func() { handled = h.reg.KeyPressed(chord) })
	return handled
}

func (h *loopHandler) KeyReleased(chord keys.Chord) bool {
	var handled bool
	h.loop.Call(func() { handled = h.reg.KeyReleased(chord) })
	return handled
}

func (h *loopHandler) PointerPressed(buttons uint32) bool {
	var handled bool
	h.loop.Call(func() { handled = h.reg.PointerPressed(buttons) })
	return handled
}

func (h *loopHandler) AxisTriggered(axis int32) bool {
	var handled bool
	h.loop.Call(func() { handled = h.reg.AxisTriggered(axis) })
	return handled
}

func (h *loopHandler) ResetModifierOnlyState() {
	h.loop.Submit(func() { h.reg.ResetModifierOnlyState() })
}
