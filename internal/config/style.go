package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Style holds the map's colors, radii and transition lengths.
type Style struct {
	LowColor        string        `yaml:"low_color"`
	HighColor       string        `yaml:"high_color"`
	PlaceholderFill string        `yaml:"placeholder_fill"`
	MeshStroke      string        `yaml:"mesh_stroke"`
	FillTransition  time.Duration `yaml:"fill_transition"`
	ZoomTransition  time.Duration `yaml:"zoom_transition"`

	PointFill        string        `yaml:"point_fill"`
	PointHoverFill   string        `yaml:"point_hover_fill"`
	PointRadius      float64       `yaml:"point_radius"`
	PointHoverRadius float64       `yaml:"point_hover_radius"`
	PointOpacity     float64       `yaml:"point_opacity"`
	HoverTransition  time.Duration `yaml:"hover_transition"`
}

// DefaultStyle returns the dashboard's stock look.
func DefaultStyle() Style {
	return Style{
		LowColor:        "#f7fbff",
		HighColor:       "#08306b",
		PlaceholderFill: "#ccc",
		MeshStroke:      "white",
		FillTransition:  750 * time.Millisecond,
		ZoomTransition:  750 * time.Millisecond,

		PointFill:        "red",
		PointHoverFill:   "darkred",
		PointRadius:      1.5,
		PointHoverRadius: 4,
		PointOpacity:     0.7,
		HoverTransition:  100 * time.Millisecond,
	}
}

// LoadStyle reads a YAML style file over DefaultStyle. An empty path returns
// the defaults.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("read style %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return Style{}, fmt.Errorf("parse style %s: %w", path, err)
	}
	return style, style.Validate()
}

// Validate checks that durations are non-negative and radii positive.
func (s Style) Validate() error {
	if s.FillTransition < 0 || s.ZoomTransition < 0 || s.HoverTransition < 0 {
		return fmt.Errorf("transition durations must be >= 0")
	}
	if s.PointRadius <= 0 || s.PointHoverRadius <= 0 {
		return fmt.Errorf("point radii must be > 0")
	}
	if s.PointOpacity < 0 || s.PointOpacity > 1 {
		return fmt.Errorf("point_opacity must be within [0, 1]")
	}
	for name, v := range map[string]string{
		"low_color":        s.LowColor,
		"high_color":       s.HighColor,
		"placeholder_fill": s.PlaceholderFill,
		"point_fill":       s.PointFill,
		"point_hover_fill": s.PointHoverFill,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}
