// Package surface applies renderer draw commands to a retained scene that
// can be serialized as SVG.
package surface

import (
	"strings"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// layer is a named group. Child layers are named "<parent>/<child>".
type layer struct {
	name        string
	transform   *domain.ViewTransform
	strokeWidth float64
	ids         []string
	elems       map[string]domain.DrawCommand
	children    []string
}

// Scene is a retained element tree built from DrawCommands.
type Scene struct {
	layers map[string]*layer
	roots  []string
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{layers: map[string]*layer{}}
}

func parentOf(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i]
	}
	return ""
}

func (s *Scene) layer(name string) *layer {
	if l, ok := s.layers[name]; ok {
		return l
	}
	l := &layer{name: name, elems: map[string]domain.DrawCommand{}}
	s.layers[name] = l
	if p := parentOf(name); p != "" {
		parent := s.layer(p)
		parent.children = append(parent.children, name)
	} else {
		s.roots = append(s.roots, name)
	}
	return l
}

// Apply executes commands in order.
func (s *Scene) Apply(cmds ...domain.DrawCommand) {
	for _, c := range cmds {
		switch c.Op {
		case domain.OpClear:
			s.clear(c.Layer)
		case domain.OpTransform:
			l := s.layer(c.Layer)
			if c.Transform != nil {
				t := *c.Transform
				l.transform = &t
			}
			l.strokeWidth = c.StrokeWidth
		case domain.OpPath, domain.OpCircle:
			l := s.layer(c.Layer)
			if _, ok := l.elems[c.ID]; !ok {
				l.ids = append(l.ids, c.ID)
			}
			l.elems[c.ID] = c
		case domain.OpStyle:
			l := s.layer(c.Layer)
			if e, ok := l.elems[c.ID]; ok {
				l.elems[c.ID] = mergeStyle(e, c)
			}
		}
	}
}

func mergeStyle(e, c domain.DrawCommand) domain.DrawCommand {
	if c.Fill != "" {
		e.Fill = c.Fill
	}
	if c.Stroke != "" {
		e.Stroke = c.Stroke
	}
	if c.R != 0 {
		e.R = c.R
	}
	if c.Opacity != 0 {
		e.Opacity = c.Opacity
	}
	if c.StrokeWidth != 0 {
		e.StrokeWidth = c.StrokeWidth
	}
	return e
}

// clear removes every element of the layer and of its descendants.
func (s *Scene) clear(name string) {
	l, ok := s.layers[name]
	if !ok {
		return
	}
	l.ids = nil
	l.elems = map[string]domain.DrawCommand{}
	for _, child := range l.children {
		s.clear(child)
	}
}

// Elements returns the elements of one layer in insertion order.
func (s *Scene) Elements(name string) []domain.DrawCommand {
	l, ok := s.layers[name]
	if !ok {
		return nil
	}
	out := make([]domain.DrawCommand, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.elems[id])
	}
	return out
}

// Count returns the number of elements in a layer and its descendants.
func (s *Scene) Count(name string) int {
	l, ok := s.layers[name]
	if !ok {
		return 0
	}
	n := len(l.ids)
	for _, child := range l.children {
		n += s.Count(child)
	}
	return n
}

// Transform returns a layer's transform, nil when never set.
func (s *Scene) Transform(name string) *domain.ViewTransform {
	if l, ok := s.layers[name]; ok {
		return l.transform
	}
	return nil
}
