package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandlerServesRecordedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveOperation("checkout", "ok", 20*time.Millisecond)
	c.ObserveOperation("checkout", "insufficient_balance", time.Millisecond)
	c.AddAmount("fee", 15000)
	c.AddAmount("fee", -1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Result().Body)
	text := string(body)
	for _, want := range []string{
		`parkcard_operations_total{operation="checkout",result="ok"} 1`,
		`parkcard_operations_total{operation="checkout",result="insufficient_balance"} 1`,
		`parkcard_amount_total{kind="fee"} 15000`,
		`parkcard_operation_duration_seconds_count{operation="checkout"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
