package maplayer

import "github.com/sells-group/zoning-cli/internal/zoning"

// Outline colours.
const (
	outlineDefault  = "#666"
	outlineSelected = "#000"
	outlineHover    = "#FFC107"
	outlineHoverSel = "#444"
)

// Style is the per-feature paint of the parcel layer.
type Style struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
}

// StyleFor is the pure style function of (zoningType, selected, hovered).
// Hover uses an amber outline that is distinct from the selection outline.
func StyleFor(p zoning.Palette, zoningType string, selected, hovered bool) Style {
	s := Style{
		FillColor:   p.Color(zoningType),
		FillOpacity: 0.5,
		Color:       outlineDefault,
		Weight:      1,
		Opacity:     1,
	}
	if selected {
		s.FillOpacity = 0.7
		s.Color = outlineSelected
		s.Weight = 3
	}
	if !hovered {
		return s
	}

	if selected {
		s.FillOpacity = 0.8
		s.Color = outlineHoverSel
		s.Weight = 3
	} else {
		s.FillOpacity = 0.6
		s.Color = outlineHover
		s.Weight = 2
	}
	return s
}
