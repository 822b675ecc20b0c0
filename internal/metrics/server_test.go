package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
)

func TestHandlerServesRecordedMetrics(t *testing.T) {
	RecordLogin("ok")

	rec := httptest.NewRecorder()
	Handler(logging.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "streamflow_logins_total") {
		t.Error("Expected login counter in metrics output")
	}
	if !strings.Contains(string(body), "go_build_info") {
		t.Error("Expected build info in metrics output")
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv := NewServer(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, time.Second) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
