package registry

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher follows the desktop-entry directories and reports entries
// appearing or vanishing while the daemon runs. Events are delivered on
// the daemon loop through submit; the registry itself stays
// single-threaded.
type Watcher struct {
	w    *fsnotify.Watcher
	log  zerolog.Logger
	done chan struct{}
}

// WatchDesktopDirs starts watching the existing directories among dirs.
// submit must execute the callback on the registry's loop.
func WatchDesktopDirs(r *Registry, dirs []string, submit func(func()), log zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watched := 0
	for _, dir := range dirs {
		if err := w.Add(dir); err == nil {
			watched++
		}
	}
	log.Debug().Int("dirs", watched).Msg("watching desktop-entry directories")

	watcher := &Watcher{w: w, log: log, done: make(chan struct{})}
	go watcher.run(r, submit)
	return watcher, nil
}

func (w *Watcher) run(r *Registry, submit func(func())) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ServiceSuffix) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				submit(func() {
					if r.GetComponent(name) != nil {
						return
					}
					if _, err := r.AddServiceComponent(name); err != nil {
						w.log.Debug().Str("target", name).Err(err).Msg("ignoring new desktop entry")
						return
					}
					w.log.Info().Str("target", name).Msg("registered new desktop entry")
				})
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				submit(func() {
					c := r.GetComponent(name)
					if c == nil || !c.IsService() {
						return
					}
					c.CleanUp()
					w.log.Info().Str("target", name).Msg("desktop entry removed, deactivated its shortcuts")
				})
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("desktop-entry watcher")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.w.Close()
}
