package httpapi

import (
	"net/http"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/service"
)

type createSessionRequest struct {
	ClientID    string   `json:"client_id"`
	DocumentIDs []string `json:"document_request_ids"`
	DueDay      int      `json:"due_day"`
}

type sessionResponse struct {
	ID          string   `json:"id"`
	ClientID    string   `json:"client_id"`
	TemplateID  string   `json:"template_id,omitempty"`
	Status      string   `json:"status"`
	SentVia     string   `json:"sent_via"`
	DueOn       string   `json:"due_on"`
	PortalURL   string   `json:"portal_url"`
	OpenedAt    string   `json:"opened_at,omitempty"`
	FinalizedAt string   `json:"finalized_at,omitempty"`
	DocumentIDs []string `json:"document_request_ids"`
}

func (a *api) toSessionResponse(s domain.SubmissionSession) sessionResponse {
	resp := sessionResponse{
		ID:          s.ID,
		ClientID:    s.ClientID,
		TemplateID:  s.TemplateID,
		Status:      string(s.Status),
		SentVia:     string(s.SentVia),
		DueOn:       s.DueOn.String(),
		PortalURL:   strings.TrimRight(a.publicURL, "/") + "/portal/" + s.Token,
		DocumentIDs: s.DocumentIDs,
	}
	if !s.OpenedAt.IsZero() {
		resp.OpenedAt = s.OpenedAt.UTC().Format(time.RFC3339)
	}
	if s.FinalizedAt != nil {
		resp.FinalizedAt = s.FinalizedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (a *api) handleSessionsCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	sess, err := a.sessionSvc.Create(r.Context(), a.ownerID, service.CreateSessionParams{
		ClientID:    strings.TrimSpace(req.ClientID),
		DocumentIDs: req.DocumentIDs,
		DueDay:      req.DueDay,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a.toSessionResponse(sess))
}

func (a *api) handleSessionsGet(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessionSvc.Get(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, a.toSessionResponse(sess))
}

func (a *api) handleSessionsExpire(w http.ResponseWriter, r *http.Request) {
	if err := a.sessionSvc.Expire(r.Context(), a.ownerID, r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
