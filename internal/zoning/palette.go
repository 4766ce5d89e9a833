package zoning

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FallbackColor is used for unknown or absent zoning types.
const FallbackColor = "#9E9E9E"

// Palette maps zoning types to fill colours.
type Palette struct {
	Colors   map[string]string `yaml:"colors"`
	Fallback string            `yaml:"fallback"`
}

// DefaultPalette returns the built-in zoning colours.
func DefaultPalette() Palette {
	return Palette{
		Colors: map[string]string{
			"Residential":  "#00BCD4",
			"Commercial":   "#1616FF",
			"Industrial":   "#FF5722",
			"Agricultural": "#4CAF50",
			"Planned":      "#964B00",
			UnzonedKey:     FallbackColor,
		},
		Fallback: FallbackColor,
	}
}

// UnzonedKey is the palette key for parcels without zoning.
const UnzonedKey = "Unzoned"

// LoadPalette reads a YAML palette file and merges it over the defaults.
// An empty path returns the defaults.
func LoadPalette(path string) (Palette, error) {
	p := DefaultPalette()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "zoning: read palette %s", path)
	}

	var override Palette
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, eris.Wrapf(err, "zoning: parse palette %s", path)
	}
	for k, c := range override.Colors {
		p.Colors[k] = c
	}
	if override.Fallback != "" {
		p.Fallback = override.Fallback
	}
	return p, nil
}

// Color returns the fill colour for zoningType.
func (p Palette) Color(zoningType string) string {
	if c, ok := p.Colors[zoningType]; ok && c != "" {
		return c
	}
	if p.Fallback == "" {
		return FallbackColor
	}
	return p.Fallback
}
