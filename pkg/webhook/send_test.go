package webhook

import (
	"context"
	"crypto/hmac"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendDeliversSignedEvent(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotSig, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := New("run.complete", "run-1", "", map[string]any{"succeeded": 3})
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, event, "secret"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if gotType != "run.complete" {
		t.Errorf("X-Event-Type = %q, want run.complete", gotType)
	}
	want := Sign(gotBody, "secret")
	if !hmac.Equal([]byte(gotSig), []byte(want)) {
		t.Errorf("signature mismatch: got %q want %q", gotSig, want)
	}
}

func TestSendServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), srv.URL, New("job.exit", "run-1", "42", nil), "")
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if IsClientError(err) {
		t.Error("5xx should not classify as client error")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	if !IsClientError(&HTTPError{StatusCode: 404}) {
		t.Error("404 should be a client error")
	}
	if IsClientError(&HTTPError{StatusCode: 503}) {
		t.Error("503 should not be a client error")
	}
	if IsClientError(io.EOF) {
		t.Error("non-HTTP errors should not be client errors")
	}
}
