// Package ipc exposes the registry on the session bus. One daemon
// object carries the registry method surface; per-component signals are
// emitted from each component's own object path as the notification
// queue drains.
package ipc

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/llehouerou/kacceld/internal/keys"
	"github.com/llehouerou/kacceld/internal/registry"
)

const (
	// BusName is the well-known service name. Requesting it doubles as
	// the daemon's single-instance check on the bus.
	BusName = "org.kde.kglobalaccel"

	// DaemonPath and DaemonInterface locate the registry methods.
	DaemonPath      = "/kglobalaccel"
	DaemonInterface = "org.kde.KGlobalAccel"

	// ComponentInterface is the interface the per-component signals
	// are emitted from.
	ComponentInterface = "org.kde.kglobalaccel.Component"

	signalPressed  = ComponentInterface + ".globalShortcutPressed"
	signalReleased = ComponentInterface + ".globalShortcutReleased"
)

// Service binds the registry to the session bus. Bus calls are
// marshalled onto the daemon loop through call, keeping the registry
// single-threaded.
type Service struct {
	conn *dbus.Conn
	reg  *registry.Registry
	call func(func())
	log  zerolog.Logger
	done chan struct{}
}

// New creates the bus service. call must execute a closure on the
// registry's loop and return after it ran.
func New(reg *registry.Registry, call func(func()), log zerolog.Logger) *Service {
	return &Service{
		reg:  reg,
		call: call,
		log:  log.With().Str("component", "ipc").Logger(),
		done: make(chan struct{}),
	}
}

// Start connects to the session bus, claims the service name and
// exports the daemon object.
func (s *Service) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("bus name %s already owned, daemon running twice", BusName)
	}

	obj := &daemonObject{svc: s}
	if err := conn.Export(obj, DaemonPath, DaemonInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export daemon object: %w", err)
	}

	s.conn = conn
	go s.drainNotifications()
	s.log.Info().Str("name", BusName).Msg("listening on session bus")
	return nil
}

// drainNotifications forwards pressed/released messages as signals, in
// queue order, so a release never overtakes its press.
func (s *Service) drainNotifications() {
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.reg.Notifications():
			if !ok {
				return
			}
			member := signalPressed
			if !n.Pressed {
				member = signalReleased
			}
			path := dbus.ObjectPath(registry.BusPathFor(n.Component))
			if err := s.conn.Emit(path, member, n.Action); err != nil {
				s.log.Warn().Str("target", n.Component).Err(err).Msg("emitting shortcut signal")
			}
		}
	}
}

// Close releases the bus name and connection.
func (s *Service) Close() error {
	close(s.done)
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(BusName); err != nil {
		s.log.Debug().Err(err).Msg("releasing bus name")
	}
	return s.conn.Close()
}

// daemonObject is the exported method surface. Every method hops onto
// the daemon loop before touching the registry.
type daemonObject struct {
	svc *Service
}

func (o *daemonObject) onLoop(fn func()) {
	o.svc.call(fn)
}

// DoRegister announces a client action. The shortcut is created fresh
// and unbound in the named context; binding happens via SetShortcut.
func (o *daemonObject) DoRegister(componentUnique, actionUnique, friendlyName, contextName string) (bool, *dbus.Error) {
	if componentUnique == "" || actionUnique == "" {
		return false, dbus.MakeFailedError(fmt.Errorf("component and action must be non-empty"))
	}
	if contextName == "" {
		contextName = registry.DefaultContext
	}
	ok := false
	o.onLoop(func() {
		reg := o.svc.reg
		c := reg.GetComponent(componentUnique)
		if c == nil {
			var err error
			c, err = reg.AddComponent(componentUnique, friendlyName)
			if err != nil {
				return
			}
		}
		c.CreateContext(contextName, "")
		c.ActivateContext(contextName)
		s := c.AddShortcut(actionUnique, friendlyName)
		s.MarkPresent()
		c.ActivateContext(registry.DefaultContext)
		ok = true
	})
	return ok, nil
}

// GetShortcut returns the current bindings of an action in the
// persisted list encoding.
func (o *daemonObject) GetShortcut(componentUnique, actionUnique string) (string, *dbus.Error) {
	result := ""
	found := false
	o.onLoop(func() {
		if s := o.findShortcut(componentUnique, actionUnique); s != nil {
			result = keys.FormatList(s.Keys())
			found = true
		}
	})
	if !found {
		return "", dbus.MakeFailedError(fmt.Errorf("unknown shortcut %s/%s", componentUnique, actionUnique))
	}
	return result, nil
}

// SetShortcut rebinds an action. False means the binding conflicts with
// an active shortcut elsewhere or a grab was refused.
func (o *daemonObject) SetShortcut(componentUnique, actionUnique, keyList string) (bool, *dbus.Error) {
	list, err := keys.ParseList(keyList)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	ok := false
	o.onLoop(func() {
		if s := o.findShortcut(componentUnique, actionUnique); s != nil {
			ok = s.SetKeys(list)
		}
	})
	return ok, nil
}

// SetForeignShortcut rebinds an action on behalf of another client,
// e.g. a settings application.
func (o *daemonObject) SetForeignShortcut(componentUnique, actionUnique, keyList string) (bool, *dbus.Error) {
	return o.SetShortcut(componentUnique, actionUnique, keyList)
}

// RegisterWithoutGrab announces a session shortcut: bound and visible,
// but never grabbed or persisted. The capture is owned elsewhere.
func (o *daemonObject) RegisterWithoutGrab(componentUnique, actionUnique, friendlyName, keyList string) (bool, *dbus.Error) {
	list, err := keys.ParseList(keyList)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	ok := false
	o.onLoop(func() {
		reg := o.svc.reg
		c := reg.GetComponent(componentUnique)
		if c == nil {
			var err error
			c, err = reg.AddComponent(componentUnique, friendlyName)
			if err != nil {
				return
			}
		}
		s := c.AddShortcut(actionUnique, friendlyName)
		s.SetSessionShortcut(true)
		s.MarkPresent()
		ok = s.SetKeys(list)
	})
	return ok, nil
}

// Unregister withdraws an action. The shortcut's grabs are released and
// it is forgotten.
func (o *daemonObject) Unregister(componentUnique, actionUnique string) (bool, *dbus.Error) {
	ok := false
	o.onLoop(func() {
		c := o.svc.reg.GetComponent(componentUnique)
		if c == nil {
			return
		}
		for _, ctx := range c.Contexts() {
			if ctx.RemoveShortcut(actionUnique) {
				ok = true
				break
			}
		}
	})
	return ok, nil
}

// ListComponents returns the unique names of every registered
// component.
func (o *daemonObject) ListComponents() ([]string, *dbus.Error) {
	var out []string
	o.onLoop(func() {
		for _, c := range o.svc.reg.Components() {
			out = append(out, c.UniqueName())
		}
	})
	return out, nil
}

// ListActions returns the action names of one component across all its
// contexts.
func (o *daemonObject) ListActions(componentUnique string) ([]string, *dbus.Error) {
	var out []string
	o.onLoop(func() {
		c := o.svc.reg.GetComponent(componentUnique)
		if c == nil {
			return
		}
		for _, s := range c.AllShortcuts() {
			out = append(out, s.UniqueName())
		}
	})
	return out, nil
}

// IsGloballyAvailable reports whether a sequence could be admitted for
// the component's default context.
func (o *daemonObject) IsGloballyAvailable(sequence, componentUnique string) (bool, *dbus.Error) {
	seq, err := keys.ParseSequence(sequence)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	ok := false
	o.onLoop(func() {
		ok = o.svc.reg.IsShortcutAvailable(seq, componentUnique, registry.DefaultContext)
	})
	return ok, nil
}

func (o *daemonObject) findShortcut(componentUnique, actionUnique string) *registry.Shortcut {
	c := o.svc.reg.GetComponent(componentUnique)
	if c == nil {
		return nil
	}
	return c.FindShortcut(actionUnique)
}
