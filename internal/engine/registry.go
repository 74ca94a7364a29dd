package engine

import (
	"path"
	"strings"
)

// Format is an engine that announces which file extensions it handles.
type Format interface {
	Engine
	Name() string
	Extensions() []string
}

var registry []Format

// Register adds a format engine to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// ForPath picks an engine for the given file path or URL path by extension.
// Unknown extensions fall back to the plain-text engine.
func ForPath(p string) Engine {
	ext := strings.ToLower(path.Ext(stripFragment(p)))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	return &TextEngine{}
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}
