package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeliver_Signed(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := &Sender{Secret: "s3cret"}
	ev := &Event{Type: EventJobCompleted, JobID: "job_1", Timestamp: 1700000000, Data: map[string]int{"count": 2}}
	if err := s.Deliver(context.Background(), srv.URL, ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotSig != Sign("s3cret", gotBody) {
		t.Errorf("signature = %q, want %q", gotSig, Sign("s3cret", gotBody))
	}
	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.JobID != "job_1" || decoded.Type != EventJobCompleted {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestDeliver_UnsignedWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Error("signature header should be absent without a secret")
		}
	}))
	defer srv.Close()

	if err := (&Sender{}).Deliver(context.Background(), srv.URL, &Event{Type: EventJobFailed}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := (&Sender{}).Deliver(context.Background(), srv.URL, &Event{}); err == nil {
		t.Error("Deliver should fail on a 5xx response")
	}
}

func TestDeliverWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &Sender{Retries: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
	if err := s.DeliverWithRetry(context.Background(), srv.URL, &Event{Type: EventJobCompleted}); err != nil {
		t.Fatalf("DeliverWithRetry: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDeliverWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := &Sender{Retries: []time.Duration{time.Millisecond}}
	if err := s.DeliverWithRetry(context.Background(), srv.URL, &Event{}); err == nil {
		t.Error("expected an error after all attempts fail")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}
