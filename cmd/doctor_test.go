package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDoctor_HealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"OK"}}]}`+"\n\ndata: [DONE]\n")
	}))
	defer srv.Close()
	cfg := testConfig(t, srv.URL, 2)

	var out bytes.Buffer
	if fail := doctor(context.Background(), cfg, zerolog.Nop(), &out, true); fail != 0 {
		t.Fatalf("expected no failures, got %d:\n%s", fail, out.String())
	}
	got := out.String()
	for _, want := range []string{"✓ API key", "✓ Endpoint URL", "✓ Streaming probe", `"OK"`, "⚠ Config directory"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in report, got:\n%s", want, got)
		}
	}
}

func TestDoctor_BadEndpoint(t *testing.T) {
	cfg := testConfig(t, "ftp://example.com/chat", 1)
	cfg.APIKey = ""

	var out bytes.Buffer
	fail := doctor(context.Background(), cfg, zerolog.Nop(), &out, true)
	if fail != 1 {
		t.Errorf("expected 1 failure, got %d:\n%s", fail, out.String())
	}
	got := out.String()
	if !strings.Contains(got, "⚠ API key") {
		t.Errorf("expected missing key warning, got:\n%s", got)
	}
	if strings.Contains(got, "Streaming probe") {
		t.Error("probe should be skipped for an invalid endpoint")
	}
}

func TestDoctor_ProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	cfg := testConfig(t, srv.URL, 1)

	var out bytes.Buffer
	if fail := doctor(context.Background(), cfg, zerolog.Nop(), &out, true); fail != 1 {
		t.Errorf("expected probe failure, got %d:\n%s", fail, out.String())
	}
	if !strings.Contains(out.String(), "401") {
		t.Errorf("expected status in report, got:\n%s", out.String())
	}
}
