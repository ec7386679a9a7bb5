package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordMailboxCreated()
	a.RecordProviderCall("list_messages", "ok", 10*time.Millisecond)
	a.RecordProviderCall("list_messages", "transport", 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MailboxesCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MailboxesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ProviderRequests.WithLabelValues("list_messages", "transport")))
}

func TestUpdateSessions(t *testing.T) {
	m := NewMetrics()
	m.UpdateSessions(3, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WatchersActive))
}

func TestHTTPHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordIntent("gen_mail")

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `ghostinbox_intents_total{kind="gen_mail"} 1`))
	assert.True(t, strings.Contains(body, "ghostinbox_uptime_seconds"))
}
