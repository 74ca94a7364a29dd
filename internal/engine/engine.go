// Package engine provides the document engine boundary: opening a packaged
// document into a navigable session, exposing its table of contents, and
// moving the rendered view between locators. Concrete engines delegate all
// container and markup decoding to external toolkits.
package engine

import "context"

// Locator is an engine-owned reference to a position within a document.
// Callers treat it as opaque: they hold the latest one and hand it back to
// Navigate, but never derive positions from its fields themselves.
type Locator struct {
	// Href identifies the chapter resource the position lies in.
	Href string `json:"href"`
	// Title is the chapter title, when known.
	Title string `json:"title,omitempty"`
	// Progression is the fractional position within the chapter, in [0, 1).
	Progression float64 `json:"progression"`
	// TotalProgression is the fractional position within the whole
	// document, in [0, 1).
	TotalProgression float64 `json:"total_progression"`
}

// TOCEntry is a node in the table-of-contents tree. Entries are identified
// by Href when resolving a selection back to a position.
type TOCEntry struct {
	Title    string
	Href     string
	Children []TOCEntry
}

// Page is a rendered view of the words currently visible, sized by the
// session's font scale.
type Page struct {
	ChapterTitle string
	Text         string
	Number       int // 1-based page number within the document
	Count        int // total pages at the current font scale
}

// EventKind discriminates session events.
type EventKind int

const (
	// EventLocationChanged reports that the visible position moved.
	EventLocationChanged EventKind = iota
	// EventError reports a non-fatal navigator error.
	EventError
	// EventExternalLink asks the host to open a URL outside the document.
	EventExternalLink
)

// Event is emitted by a session on its event channel, in the order the
// engine observed the underlying changes.
type Event struct {
	Kind    EventKind
	Locator Locator // valid for EventLocationChanged
	Err     error   // valid for EventError
	URL     string  // valid for EventExternalLink
}

// Session is one open document. It is exclusively owned by whoever opened
// it; Close releases it and closes the event channel.
type Session interface {
	// TableOfContents returns the read-only TOC snapshot taken at open.
	TableOfContents() ([]TOCEntry, error)

	// Locate resolves a TOC entry to a locator at the start of the
	// referenced chapter. The second return is false if the entry's href
	// does not resolve to any resource in the document.
	Locate(entry TOCEntry) (Locator, bool)

	// Navigate moves the rendered view to the given locator and emits a
	// location-changed event.
	Navigate(ctx context.Context, loc Locator) error

	// PageForward and PageBack turn pages, crossing chapter boundaries.
	// At either end of the document they are no-ops.
	PageForward(ctx context.Context) error
	PageBack(ctx context.Context) error

	// CurrentLocation reports the position of the visible viewport. The
	// second return is false before a position has been established.
	CurrentLocation() (Locator, bool)

	// CurrentPage renders the visible page at the current font scale.
	CurrentPage() Page

	// SubmitPreferences applies presentation preferences. Layout-affecting
	// changes reflow the document and may relocate the viewport; callers
	// that need to keep their place capture the current location first and
	// navigate back to it afterwards.
	SubmitPreferences(p Preferences)

	// Events delivers session events in emission order. The channel is
	// closed by Close.
	Events() <-chan Event

	Close() error
}

// LayoutNotifier is implemented by sessions that can signal when a reflow
// triggered by SubmitPreferences has settled. Consumers that find the
// interface absent fall back to a fixed delay.
type LayoutNotifier interface {
	LayoutSettled() <-chan struct{}
}

// Engine opens documents. An engine instance is stateless; all per-document
// state lives in the returned session.
type Engine interface {
	// Open parses the document at path and returns a session positioned at
	// initial, or at the start of the document when initial is nil or does
	// not resolve.
	Open(ctx context.Context, path string, initial *Locator) (Session, error)
}
