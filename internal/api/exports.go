// ABOUTME: HTTP handlers for diagram views and downloadable artifacts
// ABOUTME: Diagram views open a viewer per request; exports are served as attachments

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/transcript"
)

func (s *Server) handleGetDiagram(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	q := r.URL.Query()

	viewer := s.renderer.Open(ref)
	defer viewer.Close()

	if q.Get("wait") == "true" {
		select {
		case <-viewer.Ready():
		case <-r.Context().Done():
			return
		}
	}
	if q.Get("expanded") == "true" {
		viewer.ToggleExpanded()
	}

	view := viewer.Render()
	if view.Cause != nil {
		s.logger.Warn("diagram failed to render", "ref", ref, "error", view.Cause)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExportDiagram(w http.ResponseWriter, r *http.Request) {
	s.writeArtifact(w, s.renderer.Export(chi.URLParam(r, "ref")))
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	format, err := transcript.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	art, err := s.exporter.Export(s.session.Snapshot(), format)
	switch {
	case errors.Is(err, transcript.ErrPremiumRequired):
		s.sendJSONError(w, http.StatusPaymentRequired, err.Error())
		return
	case err != nil:
		s.logger.Error("transcript export failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeArtifact(w, art)
}

func (s *Server) writeArtifact(w http.ResponseWriter, art diagram.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Content); err != nil {
		s.logger.Debug("failed to write artifact", "name", art.Name, "error", err)
	}
}
