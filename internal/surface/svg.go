package surface

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/sightings-map/internal/domain"
)

// WriteSVG serializes the scene as a standalone SVG document sized to vp.
func (s *Scene) WriteSVG(w io.Writer, vp domain.Viewport) error {
	bw := bufio.NewWriter(w)
	width, height := domain.FormatCoord(vp.Width), domain.FormatCoord(vp.Height)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s">`+"\n",
		width, height, width, height)
	for _, name := range s.roots {
		s.writeLayer(bw, s.layers[name], 1)
	}
	bw.WriteString("</svg>\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func (s *Scene) writeLayer(w *bufio.Writer, l *layer, depth int) {
	indent(w, depth)
	w.WriteString(`<g id="`)
	escape(w, l.name)
	w.WriteString(`"`)
	if l.transform != nil {
		fmt.Fprintf(w, ` transform="%s"`, l.transform.SVG())
	}
	if l.strokeWidth > 0 {
		fmt.Fprintf(w, ` stroke-width="%s"`, number(l.strokeWidth))
	}
	w.WriteString(">\n")

	for _, id := range l.ids {
		writeElement(w, l.elems[id], depth+1)
	}
	for _, child := range l.children {
		s.writeLayer(w, s.layers[child], depth+1)
	}

	indent(w, depth)
	w.WriteString("</g>\n")
}

func writeElement(w *bufio.Writer, e domain.DrawCommand, depth int) {
	indent(w, depth)
	switch e.Op {
	case domain.OpCircle:
		fmt.Fprintf(w, `<circle cx="%s" cy="%s" r="%s"`, domain.FormatCoord(e.X), domain.FormatCoord(e.Y), number(e.R))
	default:
		w.WriteString(`<path d="`)
		escape(w, e.Path)
		w.WriteString(`"`)
		if e.Stroke != "" {
			w.WriteString(` stroke-linejoin="round"`)
		}
	}
	if e.ID != "" {
		w.WriteString(` data-id="`)
		escape(w, e.ID)
		w.WriteString(`"`)
	}
	attr(w, "fill", e.Fill)
	attr(w, "stroke", e.Stroke)
	if e.StrokeWidth > 0 {
		fmt.Fprintf(w, ` stroke-width="%s"`, number(e.StrokeWidth))
	}
	if e.Opacity > 0 {
		fmt.Fprintf(w, ` opacity="%s"`, number(e.Opacity))
	}

	if e.Title == "" {
		w.WriteString("/>\n")
		return
	}
	w.WriteString("><title>")
	escape(w, e.Title)
	if e.Op == domain.OpCircle {
		w.WriteString("</title></circle>\n")
		return
	}
	w.WriteString("</title></path>\n")
}

func attr(w *bufio.Writer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, ` %s="`, name)
	escape(w, value)
	w.WriteString(`"`)
}

func escape(w io.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func indent(w *bufio.Writer, depth int) {
	for range depth {
		w.WriteString("  ")
	}
}
