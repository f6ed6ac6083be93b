package httpapi

import (
	"net/http"
	"strings"

	"docuvault/internal/domain"
)

type denyUploadRequest struct {
	Reason string `json:"reason"`
}

func (a *api) handleUploadsAccept(w http.ResponseWriter, r *http.Request) {
	if err := a.reviewSvc.Review(r.Context(), a.ownerID, r.PathValue("id"), domain.UploadAccepted, ""); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) handleUploadsDeny(w http.ResponseWriter, r *http.Request) {
	var req denyUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if err := a.reviewSvc.Review(r.Context(), a.ownerID, r.PathValue("id"), domain.UploadDenied, strings.TrimSpace(req.Reason)); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) handleUploadsView(w http.ResponseWriter, r *http.Request) {
	if err := a.reviewSvc.MarkViewed(r.Context(), a.ownerID, r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) handleUploadsURL(w http.ResponseWriter, r *http.Request) {
	url, err := a.uploadSvc.StaffDownloadURL(r.Context(), a.ownerID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"url": url})
}
