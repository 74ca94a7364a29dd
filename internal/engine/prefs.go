package engine

// Font scale bounds and step. The scale is a multiplier over the base text
// size; it also determines how many words fit a page, so changing it reflows
// the document.
const (
	MinFontScale  = 0.75
	MaxFontScale  = 2.0
	FontScaleStep = 0.25
)

// Preferences is an immutable snapshot of user-adjustable presentation
// settings. Values are replaced wholesale on every edit and compared by
// value to detect changes.
type Preferences struct {
	FontScale float64 `json:"font_scale" yaml:"font_scale"`
}

// DefaultPreferences returns the out-of-the-box settings.
func DefaultPreferences() Preferences {
	return Preferences{FontScale: 1.0}
}

// Clamped returns p with every field forced into its legal domain.
func (p Preferences) Clamped() Preferences {
	if p.FontScale < MinFontScale {
		p.FontScale = MinFontScale
	}
	if p.FontScale > MaxFontScale {
		p.FontScale = MaxFontScale
	}
	return p
}

// Larger returns a copy with the font scale one step up.
func (p Preferences) Larger() Preferences {
	p.FontScale += FontScaleStep
	return p.Clamped()
}

// Smaller returns a copy with the font scale one step down.
func (p Preferences) Smaller() Preferences {
	p.FontScale -= FontScaleStep
	return p.Clamped()
}
