package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seenInContext string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = requestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seenInContext == "" {
		t.Fatal("request id missing from handler context")
	}
	if got := rec.Header().Get(requestIDHeader); got != seenInContext {
		t.Errorf("response header %s = %q, want %q", requestIDHeader, got, seenInContext)
	}
}

func TestRequestIDMiddlewareKeepsInboundID(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "caller-supplied-id" {
		t.Errorf("response header %s = %q, want caller-supplied-id", requestIDHeader, got)
	}
}

func TestStatusRecorderCapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	recorder.WriteHeader(http.StatusNotFound)
	if _, err := recorder.Write([]byte(`{"error":"source not found"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if recorder.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want %d", recorder.statusCode, http.StatusNotFound)
	}
	if want := len(`{"error":"source not found"}`); recorder.bytesWritten != want {
		t.Errorf("bytesWritten = %d, want %d", recorder.bytesWritten, want)
	}
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	if _, err := recorder.Write([]byte("ok")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if recorder.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", recorder.statusCode, http.StatusOK)
	}
}
