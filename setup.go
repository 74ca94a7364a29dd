package main

import (
	"net/url"

	"go.uber.org/zap"

	"fable/internal/config"
	"fable/internal/engine"
	"fable/internal/fetch"
	"fable/internal/session"
	"fable/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// host wires the host-side pieces around one reading session: the controller,
// the bookmark store and the initial (locator, preferences) pair restored
// from it.
type host struct {
	source  string
	key     string
	ctrl    *session.Controller
	store   *state.Store
	log     *zap.Logger
	initial *engine.Locator
}

func newHost(source string, cfg config.Config, fresh bool, log *zap.Logger) *host {
	a := &host{source: source, log: log}

	store, err := state.NewStore()
	if err != nil {
		log.Warn("bookmark store unavailable", zap.Error(err))
	} else {
		a.store = store
	}
	if key, err := state.KeyFor(source); err == nil {
		a.key = key
	}

	prefs := cfg.Preferences()
	if a.store != nil && a.key != "" && !fresh {
		if bm, ok := a.store.Get(a.key); ok {
			a.initial = bm.Locator
			if bm.Preferences.FontScale != 0 {
				prefs = bm.Preferences.Clamped()
			}
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = fetch.DefaultDir()
	}
	fetcher := fetch.New(cacheDir, log.Named("fetch"))
	eng := engine.ForPath(enginePath(source))
	a.ctrl = session.New(eng, fetcher, prefs, log.Named("session"))
	return a
}

// finish closes the session and persists what it hands back. Safe to call
// more than once.
func (a *host) finish() {
	loc, prefs := a.ctrl.Close()
	if a.store == nil || a.key == "" {
		return
	}
	if err := a.store.Set(a.key, state.Bookmark{Locator: loc, Preferences: prefs}); err != nil {
		a.log.Warn("bookmark not saved", zap.Error(err))
	}
}

// enginePath returns the path component used for engine selection: the URL
// path for remote sources, the file path otherwise.
func enginePath(source string) string {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Path
	}
	return source
}

// tocItem is one row of the flattened TOC tree, kept alongside its original
// entry so a selection can be handed back to the controller.
type tocItem struct {
	entry engine.TOCEntry
	level int
}

func flattenTOC(entries []engine.TOCEntry, level int) []tocItem {
	var items []tocItem
	for _, e := range entries {
		items = append(items, tocItem{entry: e, level: level})
		items = append(items, flattenTOC(e.Children, level+1)...)
	}
	return items
}
