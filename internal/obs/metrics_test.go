package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/v1/projects/abc":             "/v1/projects/:id",
		"/v1/projects/abc/reports":     "/v1/projects/:id/reports",
		"/v1/reports/xyz":              "/v1/reports/:id",
		"/v1/notifications/n1/read":    "/v1/notifications/:id/read",
		"/v1/search?q=alpha":           "/v1/search",
		"/v1/wallet":                   "/v1/wallet",
		"/v1/dashboard/stats":          "/v1/dashboard/stats",
		"/v1/payments/p1/confirm":      "/v1/payments/:id/confirm",
		"/v1/events?table=projects":    "/v1/events",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

// Event streams flush incrementally; the measuring wrapper must keep the
// underlying Flusher reachable.
func TestInstrumentPreservesFlusher(t *testing.T) {
	var flushable bool
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		if flushable {
			w.(http.Flusher).Flush()
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if !flushable {
		t.Fatal("instrumented writer does not implement http.Flusher")
	}
	if !rec.Flushed {
		t.Fatal("flush did not reach the underlying writer")
	}
}
