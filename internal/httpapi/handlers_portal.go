package httpapi

import (
	"net/http"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/service"
)

type portalDocument struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Required     bool     `json:"required"`
	MaxFiles     int      `json:"max_files"`
	AllowedMIMEs []string `json:"allowed_mime_types,omitempty"`
}

type portalUpload struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_request_id"`
	Filename     string `json:"filename"`
	Status       string `json:"status"`
	DenialReason string `json:"denial_reason,omitempty"`
	UploadedAt   string `json:"uploaded_at,omitempty"`
}

type portalViewResponse struct {
	DueOn     string           `json:"due_on"`
	Documents []portalDocument `json:"documents"`
	Uploads   []portalUpload   `json:"uploads"`
}

func toPortalUpload(u domain.Upload) portalUpload {
	out := portalUpload{
		ID:           u.ID,
		DocumentID:   u.DocumentID,
		Filename:     u.Filename,
		Status:       string(u.Status),
		DenialReason: u.DenialReason,
	}
	if u.UploadedAt != nil {
		out.UploadedAt = u.UploadedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// handlePortalView renders the upload page state for a tokenized link. The
// response deliberately carries no client identity beyond what the documents
// themselves reveal.
func (a *api) handlePortalView(w http.ResponseWriter, r *http.Request) {
	view, err := a.uploadSvc.View(r.Context(), r.PathValue("token"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	docs := make([]portalDocument, 0, len(view.Documents))
	for _, d := range view.Documents {
		docs = append(docs, portalDocument{
			ID:           d.ID,
			Title:        d.Title,
			Description:  d.Description,
			Required:     d.Required,
			MaxFiles:     d.MaxFiles,
			AllowedMIMEs: d.AllowedMIMEs,
		})
	}
	uploads := make([]portalUpload, 0, len(view.Uploads))
	for _, u := range view.Uploads {
		uploads = append(uploads, toPortalUpload(u))
	}
	WriteJSON(w, http.StatusOK, portalViewResponse{
		DueOn:     view.Session.DueOn.String(),
		Documents: docs,
		Uploads:   uploads,
	})
}

type portalCreateUploadRequest struct {
	DocumentID  string `json:"document_request_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type portalCreateUploadResponse struct {
	UploadID  string `json:"upload_id"`
	UploadURL string `json:"upload_url"`
}

func (a *api) handlePortalCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req portalCreateUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	up, url, err := a.uploadSvc.CreateUpload(r.Context(), r.PathValue("token"), service.CreateUploadParams{
		DocumentID:  strings.TrimSpace(req.DocumentID),
		Filename:    req.Filename,
		ContentType: strings.TrimSpace(req.ContentType),
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, portalCreateUploadResponse{UploadID: up.ID, UploadURL: url})
}

func (a *api) handlePortalCompleteUpload(w http.ResponseWriter, r *http.Request) {
	finalized, err := a.uploadSvc.CompleteUpload(r.Context(), r.PathValue("token"), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "finalized": finalized})
}
