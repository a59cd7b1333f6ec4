package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Candidates("page", "jsonld", 3)
	m.Rejected("page")
	m.Duplicate("page")
	m.Delivery("page", OutcomeDelivered, 3)
	m.Delivery("page", OutcomeFailed, 4)
	m.Capped("page", 2)

	body := scrape(t, m)
	for _, want := range []string{
		`eventsweep_candidates_total{kind="page",producer="jsonld"} 3`,
		`eventsweep_delivery_attempts_total 7`,
		`eventsweep_deliveries_total{kind="page",outcome="skipped_by_cap"} 2`,
		`eventsweep_duplicates_total{kind="page"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read exposition: %v", err)
	}
	return string(body)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Candidates("rss", "rss", 1)
	m.Rejected("rss")
	m.Delivery("rss", OutcomeDelivered, 1)
	m.SourceDone("rss", time.Second)
	m.RunDone(time.Now())
}

func TestMetrics_Textfile(t *testing.T) {
	m := New()
	m.Delivery("ics", OutcomeDelivered, 1)
	m.RunDone(time.Unix(1700000000, 0))

	body := scrape(t, m)
	if !strings.Contains(body, `eventsweep_deliveries_total{kind="ics",outcome="delivered"} 1`) {
		t.Errorf("exposition missing delivery counter:\n%s", body)
	}

	path := filepath.Join(t.TempDir(), "eventsweep.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "eventsweep_last_run_timestamp_seconds 1.7e+09") {
		t.Errorf("textfile missing last run gauge:\n%s", data)
	}
}
