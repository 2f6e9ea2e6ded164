package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcstatus/internal/status"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestHandler_ExposesNamespace(t *testing.T) {
	RecordIteration(25 * time.Millisecond)
	body := scrape(t)
	assert.Contains(t, body, "mcstatus_poll_iterations_total")
	assert.Contains(t, body, "mcstatus_poll_iteration_duration_seconds")
}

func TestRecordProbe(t *testing.T) {
	RecordProbe("metrics-test", ResultOnline, 12*time.Millisecond)
	RecordProbe("metrics-test", ResultUnreachable, 100*time.Millisecond)
	RecordLatency("metrics-test", 3*time.Millisecond)

	body := scrape(t)
	assert.Contains(t, body, `mcstatus_probes_total{result="online",server="metrics-test"} 1`)
	assert.Contains(t, body, `mcstatus_probes_total{result="unreachable",server="metrics-test"} 1`)
	assert.Contains(t, body, `mcstatus_probe_latency_seconds{server="metrics-test"} 0.003`)
}

func TestSetServerState(t *testing.T) {
	SetServerState("gauge-test", status.OnlineState(7, 50))
	body := scrape(t)
	assert.Contains(t, body, `mcstatus_server_state{server="gauge-test"} 2`)
	assert.Contains(t, body, `mcstatus_players_online{server="gauge-test"} 7`)
	assert.Contains(t, body, `mcstatus_players_max{server="gauge-test"} 50`)

	SetServerState("gauge-test", status.UnreachableState())
	body = scrape(t)
	assert.Contains(t, body, `mcstatus_server_state{server="gauge-test"} 0`)
	assert.Contains(t, body, `mcstatus_players_online{server="gauge-test"} 0`)
}

func TestRecordStateChangeAndFavicon(t *testing.T) {
	RecordStateChange("change-test", status.OfflineState())
	RecordFaviconSave("change-test", nil)
	RecordFaviconSave("change-test", errors.New("disk full"))

	body := scrape(t)
	assert.True(t, strings.Contains(body, `mcstatus_state_changes_total{server="change-test",to="Offline"} 1`))
	assert.Contains(t, body, `mcstatus_favicon_saves_total{result="ok",server="change-test"} 1`)
	assert.Contains(t, body, `mcstatus_favicon_saves_total{result="error",server="change-test"} 1`)
}
