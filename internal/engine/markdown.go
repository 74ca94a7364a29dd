package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// MarkdownEngine opens Markdown files, treating headers as chapter
// boundaries. Header nesting becomes the TOC tree; each header gets a
// synthetic href so TOC entries resolve back to chapters.
type MarkdownEngine struct{}

func init() {
	Register(&MarkdownEngine{})
}

func (e *MarkdownEngine) Name() string         { return "Markdown" }
func (e *MarkdownEngine) Extensions() []string { return []string{".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######).
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

func (e *MarkdownEngine) Open(ctx context.Context, filename string, initial *Locator) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open markdown: %w", err)
	}
	defer f.Close()

	chaps, toc, err := parseMarkdown(f)
	if err != nil {
		return nil, err
	}
	return newBookSession(chaps, toc, nil, initial)
}

func parseMarkdown(f *os.File) ([]chapter, []TOCEntry, error) {
	var (
		chaps []chapter
		toc   []TOCEntry
		cur   = chapter{href: "top", title: "Beginning"}
		n     int
	)

	flush := func() {
		if len(cur.words) > 0 {
			chaps = append(chaps, cur)
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if match := headerRegex.FindStringSubmatch(line); match != nil {
			flush()
			n++
			level := len(match[1])
			title := strings.TrimSpace(match[2])
			href := fmt.Sprintf("sec-%d", n)
			cur = chapter{href: href, title: title, words: strings.Fields(title)}
			insertTOCEntry(&toc, TOCEntry{Title: title, Href: href}, level)
			continue
		}
		cur.words = append(cur.words, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read markdown: %w", err)
	}
	flush()

	return chaps, toc, nil
}

// insertTOCEntry places an entry at the given header level, nesting under
// the most recent shallower entry.
func insertTOCEntry(root *[]TOCEntry, e TOCEntry, level int) {
	cur := root
	for l := 1; l < level; l++ {
		if len(*cur) == 0 {
			break
		}
		cur = &(*cur)[len(*cur)-1].Children
	}
	*cur = append(*cur, e)
}
