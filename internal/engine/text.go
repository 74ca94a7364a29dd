package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextEngine is the fallback for unrecognized extensions: the whole file is
// one chapter with no table of contents.
type TextEngine struct{}

func init() {
	Register(&TextEngine{})
}

func (e *TextEngine) Name() string         { return "Text" }
func (e *TextEngine) Extensions() []string { return []string{".txt"} }

func (e *TextEngine) Open(ctx context.Context, filename string, initial *Locator) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("open text: %w", err)
	}
	name := filepath.Base(filename)
	chaps := []chapter{{
		href:  name,
		title: name,
		words: strings.Fields(string(data)),
	}}
	if len(chaps[0].words) == 0 {
		chaps = nil
	}
	return newBookSession(chaps, nil, nil, initial)
}
