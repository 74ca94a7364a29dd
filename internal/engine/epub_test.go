package engine

import (
	"context"
	"math"
	"testing"
	"time"
)

func openTestBook(t *testing.T, initial *Locator) Session {
	t.Helper()
	eng := &EPUBEngine{}
	sess, err := eng.Open(context.Background(), testBook(t), initial)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

// nextEvent waits for one session event.
func nextEvent(t *testing.T, sess Session) Event {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event within 1s")
		return Event{}
	}
}

func TestEPUBOpenAndTOC(t *testing.T) {
	sess := openTestBook(t, nil)

	toc, err := sess.TableOfContents()
	if err != nil {
		t.Fatalf("TableOfContents failed: %v", err)
	}
	if len(toc) != 2 {
		t.Fatalf("expected 2 top-level entries, got %d", len(toc))
	}
	if toc[0].Title != "Chapter One" || toc[1].Title != "Chapter Two" {
		t.Errorf("unexpected titles: %q, %q", toc[0].Title, toc[1].Title)
	}
	if len(toc[1].Children) != 1 || toc[1].Children[0].Title != "Part A" {
		t.Errorf("expected one child under Chapter Two, got %+v", toc[1].Children)
	}

	page := sess.CurrentPage()
	if page.ChapterTitle != "Chapter One" {
		t.Errorf("expected to start at Chapter One, got %q", page.ChapterTitle)
	}
	if page.Number != 1 {
		t.Errorf("expected page 1, got %d", page.Number)
	}
	// 500 words at 240/page = 3 pages, 300 words = 2 pages.
	if page.Count != 5 {
		t.Errorf("expected 5 pages total, got %d", page.Count)
	}
}

func TestEPUBOpenMissingFile(t *testing.T) {
	eng := &EPUBEngine{}
	if _, err := eng.Open(context.Background(), "no-such-book.epub", nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEPUBOpenWithoutNCX(t *testing.T) {
	eng := &EPUBEngine{}
	sess, err := eng.Open(context.Background(), testBookNoNCX(t), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if _, err := sess.TableOfContents(); err == nil {
		t.Error("expected TOC error for a book without NCX")
	}
	if page := sess.CurrentPage(); page.Text == "" {
		t.Error("expected readable content despite missing NCX")
	}
}

func TestEPUBOpenWithInitialLocator(t *testing.T) {
	sess := openTestBook(t, &Locator{Href: "ch2.xhtml", Progression: 0.5})

	page := sess.CurrentPage()
	if page.ChapterTitle != "Chapter Two" {
		t.Errorf("expected Chapter Two, got %q", page.ChapterTitle)
	}
	loc, ok := sess.CurrentLocation()
	if !ok {
		t.Fatal("expected a current location")
	}
	if math.Abs(loc.Progression-0.5) > 0.01 {
		t.Errorf("expected progression ~0.5, got %f", loc.Progression)
	}
}

func TestEPUBNavigate(t *testing.T) {
	sess := openTestBook(t, nil)
	toc, _ := sess.TableOfContents()

	loc, ok := sess.Locate(toc[1])
	if !ok {
		t.Fatal("expected Chapter Two to resolve")
	}
	if err := sess.Navigate(context.Background(), loc); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	ev := nextEvent(t, sess)
	if ev.Kind != EventLocationChanged {
		t.Fatalf("expected location-changed event, got kind %d", ev.Kind)
	}
	if ev.Locator.Href != "ch2.xhtml" {
		t.Errorf("event locator href = %q, want ch2.xhtml", ev.Locator.Href)
	}
	if got := sess.CurrentPage().ChapterTitle; got != "Chapter Two" {
		t.Errorf("expected Chapter Two, got %q", got)
	}
}

func TestEPUBNavigateFragmentHref(t *testing.T) {
	sess := openTestBook(t, nil)
	toc, _ := sess.TableOfContents()

	// "Part A" points at ch2.xhtml#a.
	loc, ok := sess.Locate(toc[1].Children[0])
	if !ok {
		t.Fatal("expected fragment href to resolve to its chapter")
	}
	if loc.Href != "ch2.xhtml" {
		t.Errorf("resolved href = %q, want ch2.xhtml", loc.Href)
	}
}

func TestEPUBNavigateUnknownHref(t *testing.T) {
	sess := openTestBook(t, nil)

	before, _ := sess.CurrentLocation()
	if err := sess.Navigate(context.Background(), Locator{Href: "nowhere.xhtml"}); err == nil {
		t.Fatal("expected error for unknown href")
	}
	after, _ := sess.CurrentLocation()
	if before != after {
		t.Errorf("location changed on failed navigation: %+v -> %+v", before, after)
	}
}

func TestEPUBPageTurns(t *testing.T) {
	sess := openTestBook(t, nil)
	ctx := context.Background()

	for i, want := range []int{2, 3, 4} {
		if err := sess.PageForward(ctx); err != nil {
			t.Fatalf("PageForward %d failed: %v", i, err)
		}
		if got := sess.CurrentPage().Number; got != want {
			t.Fatalf("after %d forward turns page = %d, want %d", i+1, got, want)
		}
	}
	// Page 4 is the first page of chapter two.
	if got := sess.CurrentPage().ChapterTitle; got != "Chapter Two" {
		t.Errorf("expected Chapter Two after crossing boundary, got %q", got)
	}

	if err := sess.PageBack(ctx); err != nil {
		t.Fatalf("PageBack failed: %v", err)
	}
	page := sess.CurrentPage()
	if page.Number != 3 || page.ChapterTitle != "Chapter One" {
		t.Errorf("expected back on Chapter One page 3, got %q page %d", page.ChapterTitle, page.Number)
	}
}

func TestEPUBPageTurnsStopAtEnds(t *testing.T) {
	sess := openTestBook(t, nil)
	ctx := context.Background()

	if err := sess.PageBack(ctx); err != nil {
		t.Fatalf("PageBack at start failed: %v", err)
	}
	if got := sess.CurrentPage().Number; got != 1 {
		t.Errorf("PageBack at start moved to page %d", got)
	}

	for i := 0; i < 10; i++ {
		if err := sess.PageForward(ctx); err != nil {
			t.Fatalf("PageForward failed: %v", err)
		}
	}
	if got := sess.CurrentPage().Number; got != 5 {
		t.Errorf("expected to stop at last page 5, got %d", got)
	}
}

func TestEPUBSubmitPreferencesReflow(t *testing.T) {
	sess := openTestBook(t, nil)
	ctx := context.Background()

	if err := sess.Navigate(ctx, Locator{Href: "ch1.xhtml", Progression: 0.5}); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	nextEvent(t, sess)
	captured, _ := sess.CurrentLocation()

	sess.SubmitPreferences(Preferences{FontScale: 1.5})

	notifier, ok := sess.(LayoutNotifier)
	if !ok {
		t.Fatal("epub session should implement LayoutNotifier")
	}
	select {
	case <-notifier.LayoutSettled():
	case <-time.After(time.Second):
		t.Fatal("no layout-settled signal within 1s")
	}

	// Reflow snaps to the chapter start; the viewport lost its place.
	moved, _ := sess.CurrentLocation()
	if moved.Progression != 0 {
		t.Fatalf("expected reflow to snap to chapter start, got %f", moved.Progression)
	}

	// Restoring the captured locator puts the position back.
	if err := sess.Navigate(ctx, captured); err != nil {
		t.Fatalf("restore Navigate failed: %v", err)
	}
	restored, _ := sess.CurrentLocation()
	if restored.Href != captured.Href || math.Abs(restored.Progression-captured.Progression) > 0.01 {
		t.Errorf("restored %+v, want %+v", restored, captured)
	}
}

func TestEPUBCloseIsIdempotent(t *testing.T) {
	sess := openTestBook(t, nil)
	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, ok := <-sess.Events(); ok {
		t.Error("expected event channel to be closed")
	}
}
