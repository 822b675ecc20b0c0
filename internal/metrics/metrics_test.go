package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/render", "200", 0.123)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/render", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordBackendRequest(t *testing.T) {
	BackendRequestsTotal.Reset()

	RecordBackendRequest("list_videos", "ok", 0.01)
	RecordBackendRequest("list_videos", "server", 0.02)
	RecordBackendRequest("list_videos", "ok", 0.03)

	ok := testutil.ToFloat64(BackendRequestsTotal.WithLabelValues("list_videos", "ok"))
	if ok != 2.0 {
		t.Errorf("Expected 2 ok calls, got %f", ok)
	}

	failed := testutil.ToFloat64(BackendRequestsTotal.WithLabelValues("list_videos", "server"))
	if failed != 1.0 {
		t.Errorf("Expected 1 server failure, got %f", failed)
	}
}

func TestRecordUpload(t *testing.T) {
	VideoUploadsTotal.Reset()

	RecordUpload("success", 5*1024*1024)
	RecordUpload("validation", 0)

	if got := testutil.ToFloat64(VideoUploadsTotal.WithLabelValues("success")); got != 1.0 {
		t.Errorf("Expected 1 successful upload, got %f", got)
	}
	if got := testutil.ToFloat64(VideoUploadsTotal.WithLabelValues("validation")); got != 1.0 {
		t.Errorf("Expected 1 rejected upload, got %f", got)
	}
}

func TestRecordCacheAccess(t *testing.T) {
	CacheHitsTotal.Reset()
	CacheMissesTotal.Reset()

	RecordCacheAccess("catalog", true)
	RecordCacheAccess("catalog", true)
	RecordCacheAccess("catalog", false)

	hits := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("catalog"))
	if hits != 2.0 {
		t.Errorf("Expected 2 cache hits, got %f", hits)
	}

	misses := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("catalog"))
	if misses != 1.0 {
		t.Errorf("Expected 1 cache miss, got %f", misses)
	}
}

func TestRecordLoginAndRegistration(t *testing.T) {
	LoginsTotal.Reset()
	RegistrationsTotal.Reset()

	RecordLogin("invalid")
	RecordRegistration("ADMIN")

	if got := testutil.ToFloat64(LoginsTotal.WithLabelValues("invalid")); got != 1.0 {
		t.Errorf("Expected 1 invalid login, got %f", got)
	}
	if got := testutil.ToFloat64(RegistrationsTotal.WithLabelValues("ADMIN")); got != 1.0 {
		t.Errorf("Expected 1 admin registration, got %f", got)
	}
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("backend", "network")
	RecordError("backend", "network")

	errors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("backend", "network"))
	if errors != 2.0 {
		t.Errorf("Expected 2 errors, got %f", errors)
	}
}

func TestRecordWebhookDelivery(t *testing.T) {
	WebhookDeliveriesTotal.Reset()

	RecordWebhookDelivery("video.uploaded", "retrying")
	RecordWebhookDelivery("video.uploaded", "delivered")

	if got := testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("video.uploaded", "delivered")); got != 1.0 {
		t.Errorf("Expected 1 delivered webhook, got %f", got)
	}
}
