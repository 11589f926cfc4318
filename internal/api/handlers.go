// ABOUTME: HTTP handlers for session state, submissions, and settings
// ABOUTME: Maps dispatch sentinels to status codes

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389/mediflow/internal/dispatch"
	"github.com/2389/mediflow/internal/responder"
	"github.com/2389/mediflow/internal/session"
)

type sessionResponse struct {
	session.Snapshot
	// RemainingToday is omitted when the session has no daily limit.
	RemainingToday *int   `json:"remaining_today,omitempty"`
	DispatchID     string `json:"dispatch_id,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Snapshot: s.session.Snapshot()}
	if remaining, err := s.dispatcher.Remaining(r.Context()); err != nil {
		s.logger.Warn("failed to read remaining questions", "error", err)
	} else if remaining >= 0 {
		resp.RemainingToday = &remaining
	}
	if id, ok := s.dispatcher.InFlight(); ok {
		resp.DispatchID = id
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]session.Message{"messages": s.session.Messages()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	req := dispatch.Request{Text: body.Text, IdempotencyKey: body.IdempotencyKey}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	if r.URL.Query().Get("async") == "true" {
		s.submitAsync(w, r, req)
		return
	}

	res, err := s.dispatcher.Submit(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

// submitAsync records the question and returns without waiting for the
// reply. The dispatch outlives the request.
func (s *Server) submitAsync(w http.ResponseWriter, r *http.Request, req dispatch.Request) {
	disp, err := s.dispatcher.Start(context.WithoutCancel(r.Context()), req)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	select {
	case <-disp.Done():
		res, err := disp.Wait(r.Context())
		if err != nil {
			s.writeDispatchError(w, r, err)
			return
		}
		s.writeResult(w, res)
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "accepted",
			"dispatch_id": disp.ID,
		})
	}
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Regenerate(r.Context())
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.dispatcher.Cancel(id) {
		s.sendJSONError(w, http.StatusNotFound, "no such dispatch in flight")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeResult(w http.ResponseWriter, res *dispatch.Result) {
	if res.Status == dispatch.StatusNothingToSend {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var failed *dispatch.FailedError
	switch {
	case errors.Is(err, dispatch.ErrCredentialRequired):
		s.sendJSONError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, dispatch.ErrDispatchInFlight):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrQuotaExceeded):
		s.sendJSONError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, dispatch.ErrNoUserMessage):
		s.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case r.Context().Err() != nil:
		// Client went away; nobody is left to answer.
		s.logger.Debug("client disconnected during dispatch", "error", err)
	case errors.As(err, &failed):
		s.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":       dispatch.NoticeResponseFailed.Detail,
			"dispatch_id": failed.DispatchID,
			"kind":        string(responder.KindOf(failed.Err)),
		})
	default:
		s.logger.Error("dispatch failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var body credentialRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Credential) == "" {
		s.sendJSONError(w, http.StatusBadRequest, dispatch.ErrCredentialRequired.Error())
		return
	}
	s.session.SetCredential(body.Credential)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	s.session.SetCredential("")
	w.WriteHeader(http.StatusNoContent)
}

type premiumRequest struct {
	Premium *bool `json:"premium"`
}

func (s *Server) handleSetPremium(w http.ResponseWriter, r *http.Request) {
	var body premiumRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if body.Premium == nil {
		s.sendJSONError(w, http.StatusBadRequest, "premium is required")
		return
	}
	s.session.SetPremium(*body.Premium)
	s.writeJSON(w, http.StatusOK, map[string]bool{"premium": s.session.Premium()})
}

type preferencesRequest struct {
	ShowImages   *bool `json:"show_images"`
	ShowDiagrams *bool `json:"show_diagrams"`
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var body preferencesRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	prefs := s.session.Preferences()
	if body.ShowImages != nil {
		prefs.ShowImages = *body.ShowImages
	}
	if body.ShowDiagrams != nil {
		prefs.ShowDiagrams = *body.ShowDiagrams
	}
	s.session.SetPreferences(prefs)
	s.writeJSON(w, http.StatusOK, prefs)
}
