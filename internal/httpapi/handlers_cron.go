package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
	"docuvault/internal/service"
)

// cronToday resolves the effective date for a cron run. The today query
// parameter overrides the clock for replays and testing.
func cronToday(r *http.Request) (duedate.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("today"))
	if raw == "" {
		return duedate.Today(time.Now(), time.UTC), nil
	}
	d, err := duedate.Parse(raw)
	if err != nil {
		return duedate.Date{}, domain.NewValidationError(map[string]string{"today": "must be YYYY-MM-DD"})
	}
	return d, nil
}

// cronLimit parses the optional limit query parameter; zero means the
// service default.
func cronLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewValidationError(map[string]string{"limit": "must be a positive integer"})
	}
	return n, nil
}

func (a *api) handleCronMonthly(w http.ResponseWriter, r *http.Request) {
	today, err := cronToday(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	res, ran, err := a.monthlySvc.Run(r.Context(), today)
	if err != nil {
		a.logger.Error("monthly session cron failed", "err", err)
		WriteDomainError(w, err)
		return
	}
	if !ran {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": true, "today": today.String()})
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		OK    bool   `json:"ok"`
		Today string `json:"today"`
		service.MonthlyResult
	}{true, today.String(), res})
}

func (a *api) handleCronReminders(w http.ResponseWriter, r *http.Request) {
	today, err := cronToday(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	res, err := a.reminderSvc.Run(r.Context(), today)
	if err != nil {
		a.logger.Error("reminder cron failed", "err", err)
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		service.ReminderResult
	}{true, res})
}

func (a *api) handleCronRetention(w http.ResponseWriter, r *http.Request) {
	limit, err := cronLimit(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	res, err := a.retentionSvc.Run(r.Context(), limit)
	if err != nil {
		a.logger.Error("retention cron failed", "err", err)
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		service.RetentionResult
	}{true, res})
}

func (a *api) handleEmailDispatch(w http.ResponseWriter, r *http.Request) {
	limit, err := cronLimit(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	res, err := a.dispatchSvc.Run(r.Context(), limit)
	if err != nil {
		a.logger.Error("email dispatch failed", "err", err)
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		service.DispatchResult
	}{true, res})
}
