package httpapi

import "testing"

func TestRedactPathMasksPortalTokens(t *testing.T) {
	cases := map[string]string{
		"/portal/abc123":                     "/portal/[token]",
		"/portal/abc123/uploads":             "/portal/[token]/uploads",
		"/portal/abc123/uploads/up-1/complete": "/portal/[token]/uploads/up-1/complete",
		"/v1/clients":                        "/v1/clients",
		"/healthz":                           "/healthz",
	}
	for in, want := range cases {
		if got := redactPath(in); got != want {
			t.Errorf("redactPath(%q) = %q, want %q", in, got, want)
		}
	}
}
