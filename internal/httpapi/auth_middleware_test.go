package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/service"
)

type stubClientsListStore struct {
	clients []domain.Client
}

func (s *stubClientsListStore) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	return c, nil
}

func (s *stubClientsListStore) GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error) {
	return domain.Client{}, domain.ErrNotFound
}

func (s *stubClientsListStore) ListClients(ctx context.Context, ownerID string, limit int) ([]domain.Client, error) {
	return s.clients, nil
}

func (s *stubClientsListStore) UpdateClient(ctx context.Context, ownerID string, c domain.Client) (domain.Client, error) {
	return c, nil
}

type noopRetentionUploads struct{}

func (noopRetentionUploads) ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]domain.Upload, error) {
	return nil, nil
}

func (noopRetentionUploads) SoftDelete(ctx context.Context, uploadID string, when time.Time) (bool, error) {
	return true, nil
}

type noopBlobs struct{}

func (noopBlobs) Remove(ctx context.Context, key string) error { return nil }

func staffTestRouter(staffKey string) http.Handler {
	return NewRouter(RouterOpts{
		Clients:  &service.ClientService{Clients: &stubClientsListStore{}, Documents: nil},
		OwnerID:  "owner-1",
		StaffKey: staffKey,
	})
}

func cronTestRouter(secret string) http.Handler {
	return NewRouter(RouterOpts{
		Retention:  &service.RetentionService{Uploads: noopRetentionUploads{}, Blobs: noopBlobs{}},
		CronSecret: secret,
	})
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Error.Code
}

func TestStaffEndpointsRejectMissingKey(t *testing.T) {
	h := staffTestRouter("staff-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "unauthorized" {
		t.Fatalf("unexpected error code: %s", code)
	}
}

func TestStaffEndpointsRejectWrongKey(t *testing.T) {
	h := staffTestRouter("staff-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestStaffEndpointsAcceptBearerKey(t *testing.T) {
	h := staffTestRouter("staff-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer staff-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestStaffGateFailsClosedWithoutConfiguredKey(t *testing.T) {
	h := staffTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestCronGateAcceptsHeaderAndQuerySecret(t *testing.T) {
	h := cronTestRouter("cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/cron/retention", nil)
	req.Header.Set("X-Cron-Secret", "cron-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("header secret: unexpected status %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/cron/retention?secret=cron-secret", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("query secret: unexpected status %d", rr.Code)
	}
}

func TestCronGateRejectsWrongSecret(t *testing.T) {
	h := cronTestRouter("cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/cron/retention", nil)
	req.Header.Set("X-Cron-Secret", "guess")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestCronGateFailsClosedWithoutConfiguredSecret(t *testing.T) {
	h := cronTestRouter("")

	req := httptest.NewRequest(http.MethodPost, "/cron/retention", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}
