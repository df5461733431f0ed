package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Transactions.WithLabelValues("inserted").Add(3)
	m.Transactions.WithLabelValues("duplicate").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Transactions.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("duplicate")))
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Jobs.WithLabelValues("succeeded").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Jobs.WithLabelValues("succeeded")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Documents.WithLabelValues("processed").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pennywise_ingestion_documents_total{outcome="processed"} 1`)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ModelCall("chat", "ok")
		m.Document("parse")
		m.Reconciled(1, 2)
		m.JobFinished("succeeded", 1.5)
	})
}

func TestMetrics_Helpers(t *testing.T) {
	m := New()
	m.Reconciled(4, 1)
	m.ModelCall("classify", "error")

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Transactions.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues("classify", "error")))
}
