package httpapi

import (
	"net/http"

	"docuvault/internal/domain"
	"docuvault/internal/service"
)

type templateRequestBody struct {
	ClientID       string   `json:"client_id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	SilentAutoSend bool     `json:"silent_auto_send"`
	StartNextMonth bool     `json:"start_next_month"`
	DueDay         *int     `json:"due_day"`
	DocumentIDs    []string `json:"document_request_ids"`
}

type templateResponse struct {
	ID             string   `json:"id"`
	ClientID       string   `json:"client_id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Frequency      string   `json:"frequency"`
	SilentAutoSend bool     `json:"silent_auto_send"`
	StartNextMonth bool     `json:"start_next_month"`
	DueDay         *int     `json:"due_day,omitempty"`
	DocumentIDs    []string `json:"document_request_ids"`
}

func toTemplateResponse(t domain.RequestTemplate) templateResponse {
	return templateResponse{
		ID:             t.ID,
		ClientID:       t.ClientID,
		Name:           t.Name,
		Enabled:        t.Enabled,
		Frequency:      t.Frequency,
		SilentAutoSend: t.SilentAutoSend,
		StartNextMonth: t.StartNextMonth,
		DueDay:         t.DueDay,
		DocumentIDs:    t.DocumentIDs,
	}
}

func (r templateRequestBody) params() service.SaveTemplateParams {
	return service.SaveTemplateParams{
		ClientID:       r.ClientID,
		Name:           r.Name,
		Enabled:        r.Enabled,
		SilentAutoSend: r.SilentAutoSend,
		StartNextMonth: r.StartNextMonth,
		DueDay:         r.DueDay,
		DocumentIDs:    r.DocumentIDs,
	}
}

func (a *api) handleTemplatesCreate(w http.ResponseWriter, r *http.Request) {
	var req templateRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	t, err := a.templateSvc.Create(r.Context(), a.ownerID, req.params())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toTemplateResponse(t))
}

func (a *api) handleTemplatesGet(w http.ResponseWriter, r *http.Request) {
	t, err := a.templateSvc.Get(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (a *api) handleTemplatesUpdate(w http.ResponseWriter, r *http.Request) {
	var req templateRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	t, err := a.templateSvc.Update(r.Context(), a.ownerID, r.PathValue("id"), req.params())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (a *api) handleTemplatesSendNow(w http.ResponseWriter, r *http.Request) {
	sess, err := a.templateSvc.SendNow(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a.toSessionResponse(sess))
}
