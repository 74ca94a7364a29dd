package engine

import (
	"context"
	"fmt"
	"path"

	"github.com/taylorskalyo/goreader/epub"
)

// EPUBEngine opens EPUB containers through the goreader toolkit. Chapter
// text comes from the spine resources; chapter titles and the TOC tree come
// from the NCX.
type EPUBEngine struct{}

func init() {
	Register(&EPUBEngine{})
}

func (e *EPUBEngine) Name() string         { return "EPUB" }
func (e *EPUBEngine) Extensions() []string { return []string{".epub"} }

func (e *EPUBEngine) Open(ctx context.Context, filename string, initial *Locator) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	// A broken or missing NCX degrades to a TOC error on the session, not
	// an open failure.
	toc, tocErr := epubTOC(filename, book)
	titles := tocTitlesByHref(toc)

	var chaps []chapter
	for i, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		words, werr := wordsFromHTML(r)
		r.Close()
		if werr != nil || len(words) == 0 {
			continue
		}
		chaps = append(chaps, chapter{
			href:  ref.Item.HREF,
			title: spineTitle(titles, ref.Item.HREF, i),
			words: words,
		})
	}

	return newBookSession(chaps, toc, tocErr, initial)
}

// spineTitle finds a TOC title for a spine href, falling back to a numbered
// section name.
func spineTitle(titles map[string]string, href string, index int) string {
	if t, ok := titles[href]; ok {
		return t
	}
	if t, ok := titles[path.Base(href)]; ok {
		return t
	}
	return fmt.Sprintf("Section %d", index+1)
}

// tocTitlesByHref flattens the TOC tree into an href-to-title lookup, with
// fragment-stripped and basename variants so spine hrefs resolve however the
// NCX spelled them.
func tocTitlesByHref(entries []TOCEntry) map[string]string {
	titles := make(map[string]string)
	var walk func([]TOCEntry)
	walk = func(entries []TOCEntry) {
		for _, e := range entries {
			href := stripFragment(e.Href)
			if _, ok := titles[href]; !ok {
				titles[href] = e.Title
			}
			if base := path.Base(href); base != href {
				if _, ok := titles[base]; !ok {
					titles[base] = e.Title
				}
			}
			walk(e.Children)
		}
	}
	walk(entries)
	return titles
}
