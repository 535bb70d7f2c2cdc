package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/sightings-map/internal/dashboard"
	"github.com/couchcryptid/sightings-map/internal/domain"
	"github.com/couchcryptid/sightings-map/internal/surface"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
)

type viewHandler func(w http.ResponseWriter, r *http.Request, v *dashboard.View)

func (s *Server) withView(h viewHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		h(w, r, v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var bad badRequest
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest{fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func pathName(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func pointID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		return 0, badRequest{fmt.Errorf("parse point id: %w", err)}
	}
	return id, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, map[string]string{"id": v.ID()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	if err := v.Reload(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	st, err := v.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

type selectionResponse struct {
	Region  *string `json:"region"`
	PointID *int64  `json:"point_id"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	st, err := v.Selection(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, selectionResponse{Region: st.SelectedRegion, PointID: st.SelectedPointID})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	l, err := v.Legend(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, l)
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	var body struct {
		Metric string `json:"metric"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := v.SetMetric(r.Context(), body.Metric); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	cmds, err := v.Choropleth(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, cmds)
}

func (s *Server) handleChoroplethSVG(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	cmds, err := v.Choropleth(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSVG(w, cmds)
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	cmds, err := v.Points(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, cmds)
}

func (s *Server) handlePointsSVG(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	cmds, err := v.Points(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSVG(w, cmds)
}

func (s *Server) writeSVG(w http.ResponseWriter, cmds []domain.DrawCommand) {
	scene := surface.NewScene()
	scene.Apply(cmds...)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	if err := scene.WriteSVG(w, s.viewport); err != nil {
		s.logger.Warn("write svg", "error", err)
	}
}

func (s *Server) handleChoroplethGesture(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	var g dashboard.Gesture
	if err := decodeBody(r, &g); err != nil {
		s.writeError(w, err)
		return
	}
	if err := v.ChoroplethGesture(r.Context(), g); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePointsGesture(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	var g dashboard.Gesture
	if err := decodeBody(r, &g); err != nil {
		s.writeError(w, err)
		return
	}
	if err := v.PointsGesture(r.Context(), g); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clickBody struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (s *Server) handleRegionClick(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	var body clickBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
	}
	var anchor *domain.Point
	if body.X != nil && body.Y != nil {
		anchor = &domain.Point{X: *body.X, Y: *body.Y}
	}

	name := pathName(r, "name")
	ok, err := v.ClickRegion(r.Context(), name, anchor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown region " + name})
		return
	}
	st, err := v.Selection(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, selectionResponse{Region: st.SelectedRegion, PointID: st.SelectedPointID})
}

func (s *Server) handleRegionStats(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	name := pathName(r, "name")
	st, ok, err := v.RegionStats(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown region " + name})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handlePointAction(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	id, err := pointID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var (
		handled bool
		body    any
	)
	switch chi.URLParam(r, "action") {
	case "hover":
		handled, err = v.HoverPoint(r.Context(), id)
		body = map[string]bool{"handled": handled}
	case "unhover":
		handled, err = v.UnhoverPoint(r.Context(), id)
		body = map[string]bool{"handled": handled}
	case "click":
		res, cerr := v.ClickPoint(r.Context(), id)
		handled, err, body = res.Handled, cerr, res
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !handled {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "point not drawn"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) handleSighting(w http.ResponseWriter, r *http.Request, v *dashboard.View) {
	id, err := pointID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, ok, err := v.Sighting(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown sighting"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rec)
}
