package engine

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
)

// Words shown per page at font scale 1.0. Larger scales fit fewer words, so
// a scale change re-paginates the whole document.
const (
	baseWordsPerPage = 240
	minWordsPerPage  = 40
)

// chapter is one spine resource with its extracted words.
type chapter struct {
	href  string
	title string
	words []string
}

type position struct {
	chapter int
	word    int
}

// bookSession implements Session over pre-extracted chapter text. Engines
// differ only in how they turn a file into chapters and a TOC; navigation,
// pagination and event delivery are shared here.
//
// Reflow behavior: submitting preferences snaps the viewport to the start of
// the current chapter, like any paginated renderer whose page grid just
// changed. Callers restore their position by navigating back to a locator
// captured beforehand.
type bookSession struct {
	mu      sync.Mutex
	chaps   []chapter
	before  []int // words preceding each chapter
	total   int
	toc     []TOCEntry
	tocErr  error
	prefs   Preferences
	cur     position
	events  chan Event
	settled chan struct{}
	closed  bool
}

func newBookSession(chaps []chapter, toc []TOCEntry, tocErr error, initial *Locator) (*bookSession, error) {
	if len(chaps) == 0 {
		return nil, fmt.Errorf("document has no readable content")
	}
	s := &bookSession{
		chaps:   chaps,
		before:  make([]int, len(chaps)),
		toc:     toc,
		tocErr:  tocErr,
		prefs:   DefaultPreferences(),
		events:  make(chan Event, 32),
		settled: make(chan struct{}, 1),
	}
	for i, ch := range chaps {
		s.before[i] = s.total
		s.total += len(ch.words)
	}
	if initial != nil {
		if idx, ok := s.chapterByHref(initial.Href); ok {
			s.cur = position{chapter: idx, word: s.wordAt(idx, initial.Progression)}
		}
	}
	return s, nil
}

func (s *bookSession) TableOfContents() ([]TOCEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tocErr != nil {
		return nil, s.tocErr
	}
	return s.toc, nil
}

func (s *bookSession) Locate(entry TOCEntry) (Locator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.chapterByHref(entry.Href)
	if !ok {
		return Locator{}, false
	}
	return s.locatorFor(position{chapter: idx}), true
}

func (s *bookSession) Navigate(ctx context.Context, loc Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	idx, ok := s.chapterByHref(loc.Href)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no resource %q in document", loc.Href)
	}
	s.cur = position{chapter: idx, word: s.wordAt(idx, loc.Progression)}
	ev := Event{Kind: EventLocationChanged, Locator: s.locatorFor(s.cur)}
	s.mu.Unlock()
	s.emit(ev)
	return nil
}

func (s *bookSession) PageForward(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	wpp := s.wordsPerPage()
	next := (s.cur.word/wpp + 1) * wpp
	moved := false
	switch {
	case next < len(s.chaps[s.cur.chapter].words):
		s.cur.word = next
		moved = true
	case s.cur.chapter+1 < len(s.chaps):
		s.cur = position{chapter: s.cur.chapter + 1}
		moved = true
	}
	ev := Event{Kind: EventLocationChanged, Locator: s.locatorFor(s.cur)}
	s.mu.Unlock()
	if moved {
		s.emit(ev)
	}
	return nil
}

func (s *bookSession) PageBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	wpp := s.wordsPerPage()
	moved := false
	switch {
	case s.cur.word >= wpp:
		s.cur.word = (s.cur.word/wpp - 1) * wpp
		moved = true
	case s.cur.chapter > 0:
		prev := s.cur.chapter - 1
		last := lastPageStart(len(s.chaps[prev].words), wpp)
		s.cur = position{chapter: prev, word: last}
		moved = true
	}
	ev := Event{Kind: EventLocationChanged, Locator: s.locatorFor(s.cur)}
	s.mu.Unlock()
	if moved {
		s.emit(ev)
	}
	return nil
}

func (s *bookSession) CurrentLocation() (Locator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locatorFor(s.cur), true
}

func (s *bookSession) CurrentPage() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	wpp := s.wordsPerPage()
	ch := s.chaps[s.cur.chapter]
	start := (s.cur.word / wpp) * wpp
	end := start + wpp
	if end > len(ch.words) {
		end = len(ch.words)
	}
	number := 1 + s.cur.word/wpp
	count := 0
	for i, c := range s.chaps {
		pages := pageCount(len(c.words), wpp)
		if i < s.cur.chapter {
			number += pages
		}
		count += pages
	}
	return Page{
		ChapterTitle: ch.title,
		Text:         strings.Join(ch.words[start:end], " "),
		Number:       number,
		Count:        count,
	}
}

func (s *bookSession) SubmitPreferences(p Preferences) {
	s.mu.Lock()
	s.prefs = p.Clamped()
	// Re-pagination relocates the viewport to the chapter start.
	s.cur.word = 0
	ev := Event{Kind: EventLocationChanged, Locator: s.locatorFor(s.cur)}
	s.mu.Unlock()
	s.emit(ev)
	select {
	case s.settled <- struct{}{}:
	default:
	}
}

// LayoutSettled implements LayoutNotifier.
func (s *bookSession) LayoutSettled() <-chan struct{} {
	return s.settled
}

func (s *bookSession) Events() <-chan Event {
	return s.events
}

func (s *bookSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// emit delivers an event unless the session is closed. A consumer that has
// stopped draining loses events rather than blocking the engine.
func (s *bookSession) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

// chapterByHref resolves an href against the spine, tolerating fragment
// suffixes and relative path differences the way TOC sources write them.
func (s *bookSession) chapterByHref(href string) (int, bool) {
	href = stripFragment(href)
	if href == "" {
		return 0, false
	}
	for i, ch := range s.chaps {
		if ch.href == href {
			return i, true
		}
	}
	base := path.Base(href)
	for i, ch := range s.chaps {
		if path.Base(ch.href) == base {
			return i, true
		}
	}
	return 0, false
}

func (s *bookSession) wordAt(chapter int, progression float64) int {
	n := len(s.chaps[chapter].words)
	if n == 0 {
		return 0
	}
	if progression < 0 {
		progression = 0
	}
	w := int(progression * float64(n))
	if w >= n {
		w = n - 1
	}
	return w
}

func (s *bookSession) locatorFor(pos position) Locator {
	ch := s.chaps[pos.chapter]
	loc := Locator{Href: ch.href, Title: ch.title}
	if n := len(ch.words); n > 0 {
		loc.Progression = float64(pos.word) / float64(n)
	}
	if s.total > 0 {
		loc.TotalProgression = float64(s.before[pos.chapter]+pos.word) / float64(s.total)
	}
	return loc
}

func (s *bookSession) wordsPerPage() int {
	wpp := int(baseWordsPerPage / s.prefs.FontScale)
	if wpp < minWordsPerPage {
		wpp = minWordsPerPage
	}
	return wpp
}

func pageCount(words, wpp int) int {
	if words == 0 {
		return 1
	}
	return (words + wpp - 1) / wpp
}

func lastPageStart(words, wpp int) int {
	if words == 0 {
		return 0
	}
	return ((words - 1) / wpp) * wpp
}

func stripFragment(href string) string {
	if i := strings.Index(href, "#"); i != -1 {
		return href[:i]
	}
	return href
}
