package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"docuvault/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Clients   *service.ClientService
	Templates *service.TemplateService
	Sessions  *service.SessionService
	Review    *service.ReviewService
	Uploads   *service.UploadService
	Monthly   *service.MonthlyService
	Reminders *service.ReminderService
	Dispatch  *service.DispatchService
	Retention *service.RetentionService

	OwnerID    string
	StaffKey   string
	CronSecret string
	PublicURL  string
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		clientSvc:    opts.Clients,
		templateSvc:  opts.Templates,
		sessionSvc:   opts.Sessions,
		reviewSvc:    opts.Review,
		uploadSvc:    opts.Uploads,
		monthlySvc:   opts.Monthly,
		reminderSvc:  opts.Reminders,
		dispatchSvc:  opts.Dispatch,
		retentionSvc: opts.Retention,
		ownerID:      opts.OwnerID,
		staffKey:     opts.StaffKey,
		cronSecret:   opts.CronSecret,
		publicURL:    opts.PublicURL,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)

	// Staff surface. Routes whose service is not wired (no database, no
	// blob store) answer 501 instead of panicking.
	staff := func(h http.HandlerFunc, ready bool) http.HandlerFunc {
		if !ready {
			return handleNotImplemented
		}
		return api.requireStaff(h)
	}

	mux.HandleFunc("POST /v1/clients", staff(api.handleClientsCreate, api.clientSvc != nil))
	mux.HandleFunc("GET /v1/clients", staff(api.handleClientsList, api.clientSvc != nil))
	mux.HandleFunc("GET /v1/clients/{id}", staff(api.handleClientsGet, api.clientSvc != nil))
	mux.HandleFunc("PUT /v1/clients/{id}", staff(api.handleClientsUpdate, api.clientSvc != nil))
	mux.HandleFunc("POST /v1/clients/{id}/documents", staff(api.handleDocumentsCreate, api.clientSvc != nil))
	mux.HandleFunc("GET /v1/clients/{id}/documents", staff(api.handleDocumentsList, api.clientSvc != nil))
	mux.HandleFunc("POST /v1/documents/{id}/archive", staff(api.handleDocumentsArchive, api.clientSvc != nil))
	mux.HandleFunc("POST /v1/documents/{id}/restore", staff(api.handleDocumentsRestore, api.clientSvc != nil))

	mux.HandleFunc("POST /v1/templates", staff(api.handleTemplatesCreate, api.templateSvc != nil))
	mux.HandleFunc("GET /v1/templates/{id}", staff(api.handleTemplatesGet, api.templateSvc != nil))
	mux.HandleFunc("PUT /v1/templates/{id}", staff(api.handleTemplatesUpdate, api.templateSvc != nil))
	mux.HandleFunc("POST /v1/templates/{id}/send", staff(api.handleTemplatesSendNow, api.templateSvc != nil))

	mux.HandleFunc("POST /v1/sessions", staff(api.handleSessionsCreate, api.sessionSvc != nil))
	mux.HandleFunc("GET /v1/sessions/{id}", staff(api.handleSessionsGet, api.sessionSvc != nil))
	mux.HandleFunc("POST /v1/sessions/{id}/expire", staff(api.handleSessionsExpire, api.sessionSvc != nil))

	mux.HandleFunc("POST /v1/uploads/{id}/accept", staff(api.handleUploadsAccept, api.reviewSvc != nil))
	mux.HandleFunc("POST /v1/uploads/{id}/deny", staff(api.handleUploadsDeny, api.reviewSvc != nil))
	mux.HandleFunc("POST /v1/uploads/{id}/view", staff(api.handleUploadsView, api.reviewSvc != nil))
	mux.HandleFunc("GET /v1/uploads/{id}/url", staff(api.handleUploadsURL, api.uploadSvc != nil))

	ifReady := func(h http.HandlerFunc, ready bool) http.HandlerFunc {
		if !ready {
			return handleNotImplemented
		}
		return h
	}

	// Token-gated client portal.
	mux.HandleFunc("GET /portal/{token}", ifReady(api.handlePortalView, api.uploadSvc != nil))
	mux.HandleFunc("POST /portal/{token}/uploads", ifReady(api.handlePortalCreateUpload, api.uploadSvc != nil))
	mux.HandleFunc("POST /portal/{token}/uploads/{id}/complete", ifReady(api.handlePortalCompleteUpload, api.uploadSvc != nil))

	cron := func(h http.HandlerFunc, ready bool) http.HandlerFunc {
		if !ready {
			return handleNotImplemented
		}
		return api.requireCronSecret(h)
	}

	// Cron surface.
	mux.HandleFunc("POST /cron/monthly-sessions", cron(api.handleCronMonthly, api.monthlySvc != nil))
	mux.HandleFunc("POST /cron/reminders-14d", cron(api.handleCronReminders, api.reminderSvc != nil))
	mux.HandleFunc("POST /cron/retention", cron(api.handleCronRetention, api.retentionSvc != nil))
	mux.HandleFunc("POST /email/dispatch", cron(api.handleEmailDispatch, api.dispatchSvc != nil))

	var h http.Handler = mux
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	clientSvc    *service.ClientService
	templateSvc  *service.TemplateService
	sessionSvc   *service.SessionService
	reviewSvc    *service.ReviewService
	uploadSvc    *service.UploadService
	monthlySvc   *service.MonthlyService
	reminderSvc  *service.ReminderService
	dispatchSvc  *service.DispatchService
	retentionSvc *service.RetentionService

	ownerID    string
	staffKey   string
	cronSecret string
	publicURL  string
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
