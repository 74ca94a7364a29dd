// Package session owns the lifecycle of one document-reading session:
// loading, preference synchronization, locator tracking and close-with-state.
//
// A Controller serves a single reader invocation. State moves Idle →
// Loading → Ready or Failed, and never back; the only recovery from Failed
// is Close. At most one suspending operation (Load, NavigateTo,
// ApplyPreferences) is expected in flight at a time.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"fable/internal/engine"
)

// settleDelay bounds the wait for re-layout after a preference change when
// the engine offers no layout-settled signal. A heuristic, not a guarantee.
const settleDelay = 100 * time.Millisecond

// Fetcher retrieves a remote document into a locally addressable path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, useCache bool) (string, error)
}

// State enumerates the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller drives one reading session. It exclusively owns the engine
// session it opens and is the only writer of the cached current locator,
// which it updates from location-changed events (last write wins) and from
// the restore step after a preference change.
type Controller struct {
	eng     engine.Engine
	fetcher Fetcher
	log     *zap.Logger
	settle  time.Duration

	mu      sync.Mutex
	state   State
	failure *LoadError
	sess    engine.Session
	local   string
	toc     []engine.TOCEntry
	current *engine.Locator
	prefs   engine.Preferences
	applied engine.Preferences
	closed  bool

	events chan engine.Event
}

// New creates an idle controller. prefs is the host's initial preferences
// snapshot; it is submitted to the engine during Load and handed back on
// Close if never changed. log may be nil.
func New(eng engine.Engine, fetcher Fetcher, prefs engine.Preferences, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	p := prefs.Clamped()
	return &Controller{
		eng:     eng,
		fetcher: fetcher,
		log:     log,
		settle:  settleDelay,
		state:   StateIdle,
		prefs:   p,
		applied: p,
		events:  make(chan engine.Event, 32),
	}
}

// Load resolves the source, opens it through the engine and transitions to
// Ready or Failed. A remote source is fetched into the local cache first.
// Failure to read the table of contents degrades to an empty list, not a
// session failure. If Close is called while Load is in flight, the result is
// discarded and no state transition happens.
func (c *Controller) Load(ctx context.Context, source string, initial *engine.Locator) error {
	c.mu.Lock()
	if c.state != StateIdle {
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("load: session already %s", s)
	}
	c.state = StateLoading
	c.mu.Unlock()

	local := source
	if isRemote(source) {
		if c.fetcher == nil {
			return c.fail(&LoadError{Kind: FailureInvalidSource, Source: source, Err: fmt.Errorf("remote sources not supported")})
		}
		p, err := c.fetcher.Fetch(ctx, source, true)
		if err != nil {
			return c.fail(&LoadError{Kind: FailureFetch, Source: source, Err: err})
		}
		local = p
	} else if source == "" {
		return c.fail(&LoadError{Kind: FailureInvalidSource, Source: source, Err: fmt.Errorf("empty source")})
	}

	sess, err := c.eng.Open(ctx, local, initial)
	if err != nil {
		return c.fail(&LoadError{Kind: FailureOpen, Source: source, Err: err})
	}

	toc, err := sess.TableOfContents()
	if err != nil {
		c.log.Warn("table of contents unavailable", zap.Error(err))
		toc = nil
	}

	if c.prefs != engine.DefaultPreferences() {
		sess.SubmitPreferences(c.prefs)
		if initial != nil {
			// The submit reflow snapped to a chapter start; put the
			// viewport back on the host's saved position.
			if err := sess.Navigate(ctx, *initial); err != nil {
				c.log.Warn("initial position not restored", zap.Error(err))
			}
		}
	} else if initial != nil {
		if err := sess.Navigate(ctx, *initial); err != nil {
			c.log.Warn("initial position not restored", zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = sess.Close()
		return nil
	}
	c.sess = sess
	c.local = local
	c.toc = toc
	c.state = StateReady
	c.mu.Unlock()

	go c.pump(sess)
	return nil
}

// NavigateTo resolves a TOC entry and moves the view there. Outside Ready,
// and for entries that do not resolve, it logs and returns without touching
// the session; navigation failures are likewise non-fatal.
func (c *Controller) NavigateTo(ctx context.Context, entry engine.TOCEntry) error {
	c.mu.Lock()
	if c.state != StateReady {
		s := c.state
		c.mu.Unlock()
		c.log.Warn("navigation ignored", zap.String("state", s.String()), zap.String("entry", entry.Title))
		return nil
	}
	sess := c.sess
	c.mu.Unlock()

	loc, ok := sess.Locate(entry)
	if !ok {
		c.log.Warn("contents entry did not resolve", zap.String("href", entry.Href), zap.String("entry", entry.Title))
		return nil
	}
	if err := sess.Navigate(ctx, loc); err != nil {
		c.log.Warn("navigation failed", zap.String("href", loc.Href), zap.Error(err))
	}
	return nil
}

// ApplyPreferences reconciles new preferences against the live session
// without losing the reading position: capture the current locator, submit,
// wait for the layout to settle, then navigate back to the captured spot.
// Value-equal preferences are a no-op. A failed restore leaves the session
// Ready wherever the engine settled.
func (c *Controller) ApplyPreferences(ctx context.Context, p engine.Preferences) error {
	p = p.Clamped()
	c.mu.Lock()
	if c.state != StateReady {
		s := c.state
		c.mu.Unlock()
		c.log.Warn("preferences ignored", zap.String("state", s.String()))
		return nil
	}
	if p == c.applied {
		c.mu.Unlock()
		return nil
	}
	sess := c.sess
	c.mu.Unlock()

	// Capture before mutating: the reflow can relocate the viewport.
	captured, hasPos := sess.CurrentLocation()

	sess.SubmitPreferences(p)
	c.waitForReflow(ctx, sess)

	if hasPos {
		if err := sess.Navigate(ctx, captured); err != nil {
			c.log.Warn("position not restored after reflow", zap.String("href", captured.Href), zap.Error(err))
		} else {
			c.mu.Lock()
			loc := captured
			c.current = &loc
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.prefs = p
	c.applied = p
	c.mu.Unlock()
	return nil
}

// waitForReflow blocks until the engine reports the layout settled, or the
// fixed delay elapses for engines without a signal.
func (c *Controller) waitForReflow(ctx context.Context, sess engine.Session) {
	if n, ok := sess.(engine.LayoutNotifier); ok {
		select {
		case <-n.LayoutSettled():
		case <-time.After(c.settle):
		case <-ctx.Done():
		}
		return
	}
	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
	}
}

// OnLocationChanged records a location-changed event. Last write wins;
// events arrive in the order the engine emitted them.
func (c *Controller) OnLocationChanged(loc engine.Locator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := loc
	c.current = &l
}

// PageForward turns to the next page. No-op outside Ready.
func (c *Controller) PageForward(ctx context.Context) error {
	if sess := c.readySession(); sess != nil {
		return sess.PageForward(ctx)
	}
	return nil
}

// PageBack turns to the previous page. No-op outside Ready.
func (c *Controller) PageBack(ctx context.Context) error {
	if sess := c.readySession(); sess != nil {
		return sess.PageBack(ctx)
	}
	return nil
}

// Page renders the currently visible page, or a zero page outside Ready.
func (c *Controller) Page() engine.Page {
	if sess := c.readySession(); sess != nil {
		return sess.CurrentPage()
	}
	return engine.Page{}
}

// Close ends the session and hands back the last observed locator with the
// latest preferences snapshot. The locator is nil if the session never
// became ready. Safe to call at any point, including mid-load.
func (c *Controller) Close() (*engine.Locator, engine.Preferences) {
	c.mu.Lock()
	c.closed = true
	sess := c.sess
	c.sess = nil
	var loc *engine.Locator
	if c.current != nil {
		l := *c.current
		loc = &l
	}
	prefs := c.prefs
	c.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
	return loc, prefs
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failure returns the load error after a Failed transition, else nil.
func (c *Controller) Failure() *LoadError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// TOC returns the read-only table-of-contents snapshot taken at load time.
func (c *Controller) TOC() []engine.TOCEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toc
}

// CurrentLocation returns a copy of the cached locator, or nil before the
// first location-changed event.
func (c *Controller) CurrentLocation() *engine.Locator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	l := *c.current
	return &l
}

// Preferences returns the latest preferences snapshot.
func (c *Controller) Preferences() engine.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// LocalPath returns the local file the session was opened from, once known.
func (c *Controller) LocalPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// Events forwards engine events, after the controller has applied them, for
// UI observers. Delivery stops when the session closes.
func (c *Controller) Events() <-chan engine.Event {
	return c.events
}

func (c *Controller) readySession() engine.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.closed {
		return nil
	}
	return c.sess
}

func (c *Controller) fail(lerr *LoadError) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.state = StateFailed
	c.failure = lerr
	c.log.Error("session failed", zap.String("source", lerr.Source), zap.Error(lerr))
	return lerr
}

// pump consumes the engine's event channel for the life of the session,
// applying each event before forwarding it to observers.
func (c *Controller) pump(sess engine.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case engine.EventLocationChanged:
			c.OnLocationChanged(ev.Locator)
		case engine.EventError:
			c.log.Warn("navigator error", zap.Error(ev.Err))
		case engine.EventExternalLink:
			c.log.Info("external link requested", zap.String("url", ev.URL))
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		select {
		case c.events <- ev:
		default:
		}
	}
}

// isRemote reports whether the source needs a network fetch before the
// engine can open it.
func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
