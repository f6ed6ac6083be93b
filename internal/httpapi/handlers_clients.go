package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/service"
)

type clientRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Active        *bool  `json:"active"`
	PortalEnabled *bool  `json:"portal_enabled"`
	DueDay        int    `json:"due_day"`
	DueTimezone   string `json:"due_timezone"`
}

type clientResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Active        bool   `json:"active"`
	PortalEnabled bool   `json:"portal_enabled"`
	DueDay        int    `json:"due_day"`
	DueTimezone   string `json:"due_timezone"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toClientResponse(c domain.Client) clientResponse {
	return clientResponse{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Active:        c.Active,
		PortalEnabled: c.PortalEnabled,
		DueDay:        c.DueDay,
		DueTimezone:   c.DueTimezone,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (r clientRequest) params() service.SaveClientParams {
	// New clients default to active with the portal on.
	active, portal := true, true
	if r.Active != nil {
		active = *r.Active
	}
	if r.PortalEnabled != nil {
		portal = *r.PortalEnabled
	}
	return service.SaveClientParams{
		Name:          r.Name,
		Email:         r.Email,
		Active:        active,
		PortalEnabled: portal,
		DueDay:        r.DueDay,
		DueTimezone:   r.DueTimezone,
	}
}

func (a *api) handleClientsCreate(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	c, err := a.clientSvc.Create(r.Context(), a.ownerID, req.params())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toClientResponse(c))
}

func (a *api) handleClientsList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	clients, err := a.clientSvc.List(r.Context(), a.ownerID, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (a *api) handleClientsGet(w http.ResponseWriter, r *http.Request) {
	c, err := a.clientSvc.Get(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toClientResponse(c))
}

func (a *api) handleClientsUpdate(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	c, err := a.clientSvc.Update(r.Context(), a.ownerID, r.PathValue("id"), req.params())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toClientResponse(c))
}

type documentRequestBody struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Required     bool     `json:"required"`
	SortOrder    int      `json:"sort_order"`
	MaxFiles     int      `json:"max_files"`
	AllowedMIMEs []string `json:"allowed_mime_types"`
}

type documentResponse struct {
	ID           string   `json:"id"`
	ClientID     string   `json:"client_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Required     bool     `json:"required"`
	Active       bool     `json:"active"`
	SortOrder    int      `json:"sort_order"`
	MaxFiles     int      `json:"max_files"`
	AllowedMIMEs []string `json:"allowed_mime_types,omitempty"`
}

func toDocumentResponse(d domain.DocumentRequest) documentResponse {
	return documentResponse{
		ID:           d.ID,
		ClientID:     d.ClientID,
		Title:        d.Title,
		Description:  d.Description,
		Required:     d.Required,
		Active:       d.Active,
		SortOrder:    d.SortOrder,
		MaxFiles:     d.MaxFiles,
		AllowedMIMEs: d.AllowedMIMEs,
	}
}

func (a *api) handleDocumentsCreate(w http.ResponseWriter, r *http.Request) {
	var req documentRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	d, err := a.clientSvc.CreateDocument(r.Context(), a.ownerID, r.PathValue("id"), service.SaveDocumentParams{
		Title:        req.Title,
		Description:  req.Description,
		Required:     req.Required,
		SortOrder:    req.SortOrder,
		MaxFiles:     req.MaxFiles,
		AllowedMIMEs: req.AllowedMIMEs,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toDocumentResponse(d))
}

func (a *api) handleDocumentsList(w http.ResponseWriter, r *http.Request) {
	docs, err := a.clientSvc.ListDocuments(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (a *api) handleDocumentsArchive(w http.ResponseWriter, r *http.Request) {
	a.setDocumentActive(w, r, false)
}

func (a *api) handleDocumentsRestore(w http.ResponseWriter, r *http.Request) {
	a.setDocumentActive(w, r, true)
}

func (a *api) setDocumentActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := a.clientSvc.SetDocumentActive(r.Context(), a.ownerID, r.PathValue("id"), active); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
