// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/health" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{
			"status": "healthy",
			"timestamp": "2026-08-25T10:15:00Z",
			"components": {
				"database": "ok",
				"camera": "ready",
				"disk_space_gb": 21.4
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	report, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !report.Healthy() {
		t.Errorf("Healthy() = false for status %q", report.Status)
	}
	if !report.DatabaseOK() {
		t.Errorf("DatabaseOK() = false for %q", report.Components.Database)
	}
	if report.Components.Camera != "ready" {
		t.Errorf("camera = %q, want %q", report.Components.Camera, "ready")
	}
	if report.Components.DiskSpaceGB != 21.4 {
		t.Errorf("disk_space_gb = %v, want 21.4", report.Components.DiskSpaceGB)
	}
	if report.Timestamp != "2026-08-25T10:15:00Z" {
		t.Errorf("timestamp = %q", report.Timestamp)
	}
}

func TestHealth_DegradedReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{
			"status": "degraded",
			"timestamp": "2026-08-25T10:15:00Z",
			"components": {"database": "error: connection refused", "camera": "ready", "disk_space_gb": 3.2}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	report, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Healthy() {
		t.Error("Healthy() = true for degraded status")
	}
	if report.DatabaseOK() {
		t.Errorf("DatabaseOK() = true for %q", report.Components.Database)
	}
}

func TestHealth_NonJSONBody(t *testing.T) {
	// A half-started service (or a proxy error page) can answer 200
	// with HTML. That is alive-but-degraded, not a transport failure.
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/html")
		writer.Write([]byte("<html><body>Service Warming Up</body></html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	report, err := client.Health(context.Background())
	if err == nil {
		t.Fatal("expected error for non-JSON body")
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseError.Raw != "<html><body>Service Warming Up</body></html>" {
		t.Errorf("Raw = %q, want the body as received", parseError.Raw)
	}
}

func TestHealth_NonTwoHundred(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusServiceUnavailable)
		writer.Write([]byte("unavailable"))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Health(context.Background())
	var statusError *StatusError
	if !errors.As(err, &statusError) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	var parseError *ParseError
	if errors.As(err, &parseError) {
		t.Error("non-2xx must not surface as *ParseError")
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello..."},
		{"newlines flattened", "line one\nline two", 40, "line one line two"},
		{"runs of space collapsed", "a   b\t\tc", 40, "a b c"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Excerpt(test.in, test.max); got != test.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", test.in, test.max, got, test.want)
			}
		})
	}
}
