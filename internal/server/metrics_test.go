package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ohmynofan/questline-bot/internal/platform/metrics"
)

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	metrics.AccountRunsTotal.WithLabelValues("real", "success").Inc()
	srv := httptest.NewServer(NewMetricsServer("", metrics.NewRegistry()).Handler())
	defer srv.Close()

	tests := []struct {
		path string
		want string
	}{
		{HealthPath, "ok"},
		{MetricsPath, "questline_account_runs_total"},
		{MetricsPath, "go_goroutines"},
	}
	for _, tt := range tests {
		res, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK || !strings.Contains(string(body), tt.want) {
			t.Errorf("GET %s = %d, missing %q", tt.path, res.StatusCode, tt.want)
		}
	}
}

func TestStartAndShutdown(t *testing.T) {
	m := NewMetricsServer("127.0.0.1:0", metrics.NewRegistry())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := http.Get("http://" + m.Addr() + HealthPath)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := http.Get("http://" + m.Addr() + HealthPath); err == nil {
		t.Fatal("server still answering after shutdown")
	}
}
