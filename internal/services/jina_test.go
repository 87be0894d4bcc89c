package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestJinaExtractContent(t *testing.T) {
	page := "# Events in Pune\n\n" + strings.Repeat("Live music at the Hard Rock Cafe every Friday. ", 5)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/https://example.com/pune" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer jina-key" {
			t.Errorf("missing authorization header")
		}
		w.Write([]byte(page))
	}))
	defer server.Close()

	client := NewJinaClient("jina-key").WithBaseURL(server.URL).WithRetryConfig(fastRetry())
	content, err := client.ExtractContent(context.Background(), "https://example.com/pune")
	if err != nil {
		t.Fatalf("ExtractContent returned error: %v", err)
	}
	if content != page {
		t.Errorf("unexpected content %q", content)
	}
}

func TestJinaRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(strings.Repeat("x", 200)))
	}))
	defer server.Close()

	client := NewJinaClient("").WithBaseURL(server.URL).WithRetryConfig(fastRetry())
	if _, err := client.ExtractContent(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestJinaDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewJinaClient("").WithBaseURL(server.URL).WithRetryConfig(fastRetry())
	_, err := client.ExtractContent(context.Background(), "https://example.com/missing")
	if !errors.Is(err, ErrJinaClientError) {
		t.Fatalf("expected ErrJinaClientError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestValidateURL(t *testing.T) {
	testCases := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com/events", false},
		{"", true},
		{"ftp://example.com", true},
		{"https://" + strings.Repeat("a", 2050), true},
	}
	for _, tc := range testCases {
		if err := ValidateURL(tc.url); (err != nil) != tc.wantErr {
			t.Errorf("ValidateURL(%.30q) error = %v, wantErr %v", tc.url, err, tc.wantErr)
		}
	}
}
