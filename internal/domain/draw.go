package domain

import (
	"math"
	"strconv"
	"time"
)

// Op identifies what a DrawCommand does to a surface.
type Op string

const (
	// OpClear removes every element of Layer.
	OpClear Op = "clear"
	// OpPath creates or replaces a path element.
	OpPath Op = "path"
	// OpCircle creates or replaces a circle element.
	OpCircle Op = "circle"
	// OpStyle updates fill/radius/opacity of an existing element.
	OpStyle Op = "style"
	// OpTransform sets the transform and stroke width of Layer.
	OpTransform Op = "transform"
)

// DrawCommand is one platform-neutral instruction for a drawing surface.
// Zero-valued style fields mean "leave unchanged" for OpStyle.
type DrawCommand struct {
	Op          Op             `json:"op"`
	Layer       string         `json:"layer"`
	ID          string         `json:"id,omitempty"`
	Path        string         `json:"d,omitempty"`
	X           float64        `json:"cx,omitempty"`
	Y           float64        `json:"cy,omitempty"`
	R           float64        `json:"r,omitempty"`
	Fill        string         `json:"fill,omitempty"`
	Stroke      string         `json:"stroke,omitempty"`
	StrokeWidth float64        `json:"stroke_width,omitempty"`
	Opacity     float64        `json:"opacity,omitempty"`
	Transform   *ViewTransform `json:"transform,omitempty"`
	Title       string         `json:"title,omitempty"`
	// DurationMS is the transition length the client should animate over.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// FormatCoord renders a coordinate compactly with at most three decimals.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(roundTo(v, 3), 'f', -1, 64)
}

// Millis converts a transition length for DrawCommand.DurationMS.
func Millis(d time.Duration) int64 {
	return d.Milliseconds()
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
