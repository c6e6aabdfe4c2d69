package config

import (
	"github.com/fsnotify/fsnotify"
)

// NonIdentityKeys are the keys a hot-reload is allowed to change without a
// restart: heartbeat/schedule/reset behaviour, never the identity tuple
// that determines which SessionID a section describes (SPEC_FULL.md
// Configuration: hot-reload is additive to spec §4.9's "validated once at
// load").
var NonIdentityKeys = map[string]bool{
	KeyHeartbeatInterval:  true,
	KeyResetOnLogon:       true,
	KeyResetOnLogout:      true,
	KeyResetOnDisconnect:  true,
	KeyStartTime:          true,
	KeyEndTime:            true,
	KeyStartDay:           true,
	KeyEndDay:             true,
	KeyDefaultTimezone:    true,
	KeyReconnectInterval:  true,
	KeyMaxLatency:         true,
	KeyValidateEnumValues: true,
}

// Watcher watches a settings file for changes and re-parses it on write,
// delivering only successfully-revalidated Settings on Changes. A reload
// that fails validation is logged via OnError and the previous Settings
// keeps serving.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	Changes chan *Settings
	OnError func(error)
}

// WatchFile starts watching path for writes, reloading and pushing onto
// Changes on every write event (grounded in gravwell's filewatch use of
// fsnotify.Write to detect in-place config rewrites).
func WatchFile(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		watcher: fw,
		Changes: make(chan *Settings, 1),
		OnError: func(error) {},
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Write == 0 {
				continue
			}
			settings, err := Load(w.path)
			if err != nil {
				w.OnError(err)
				continue
			}
			w.Changes <- settings
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.OnError(err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.Changes)
	return w.watcher.Close()
}
