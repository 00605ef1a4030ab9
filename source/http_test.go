package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

func TestHTTPEntries(t *testing.T) {
	exam := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)
	want := []worklist.Entry{{
		AccessionNumber: "AB123",
		PatientID:       "100015",
		Surname:         "Test",
		Forename:        "Hilbert",
		Modality:        "MR",
		ExamDateAndTime: exam,
		ProcedureStepID: "200002",
	}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("unexpected Accept header %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL, 0, zerolog.Nop()).Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].PatientID != "100015" || got[0].Surname != "Test" || got[0].ProcedureStepID != "200002" {
		t.Errorf("unexpected entry %+v", got[0])
	}
	if !got[0].ExamDateAndTime.Equal(exam) {
		t.Errorf("exam time = %v, want %v", got[0].ExamDateAndTime, exam)
	}
	if !got[0].DateOfBirth.IsZero() {
		t.Errorf("expected zero date of birth, got %v", got[0].DateOfBirth)
	}
}

func TestHTTPEntriesRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL, 2, zerolog.Nop())
	src.client.RetryWaitMin = time.Millisecond
	src.client.RetryWaitMax = time.Millisecond

	got, err := src.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}

func TestHTTPEntriesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: "missing"},
		{name: "bad json", status: http.StatusOK, body: "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewHTTP(srv.URL, 0, zerolog.Nop()).Entries(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
