package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shiftd/internal/engine"
)

// mockEngine scripts the engine surface for handler tests.
type mockEngine struct {
	status         engine.Status
	report         *engine.IntelligenceReport
	reportErr      error
	stopped        bool
	emergencyStops int
}

func (m *mockEngine) Status() engine.Status { return m.status }

func (m *mockEngine) Report(ctx context.Context) (*engine.IntelligenceReport, error) {
	return m.report, m.reportErr
}

func (m *mockEngine) Stop() {
	m.stopped = true
	m.status.State = engine.StateStopped
	m.status.Autonomous = false
}

func (m *mockEngine) EmergencyStop() {
	m.emergencyStops++
	m.status.State = engine.StateEmergencyStopped
	m.status.CacheSize = 0
}

func newTestServer(t *testing.T, eng EngineService) *Server {
	t.Helper()
	s, err := NewServer(eng, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(&mockEngine{}, nil, nil)
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	eng := &mockEngine{status: engine.Status{State: engine.StateRunning}}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "running", resp.Engine)
}

func TestStatusEndpoint(t *testing.T) {
	eng := &mockEngine{status: engine.Status{
		Initialized: true,
		Autonomous:  true,
		State:       engine.StateRunning,
		CacheSize:   3,
	}}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var got engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Initialized)
	assert.Equal(t, 3, got.CacheSize)
}

func TestReportEndpoint(t *testing.T) {
	eng := &mockEngine{report: &engine.IntelligenceReport{State: engine.StateRunning}}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/api/v1/report")

	require.Equal(t, http.StatusOK, rec.Code)
	var got engine.IntelligenceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, engine.StateRunning, got.State)
}

func TestReportEndpointNotInitialized(t *testing.T) {
	eng := &mockEngine{reportErr: engine.ErrNotInitialized}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/api/v1/report")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReportEndpointFailure(t *testing.T) {
	eng := &mockEngine{reportErr: errors.New("snapshot failed")}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/api/v1/report")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStopEndpoint(t *testing.T) {
	eng := &mockEngine{status: engine.Status{State: engine.StateRunning, Autonomous: true}}
	rec := doRequest(newTestServer(t, eng), http.MethodPost, "/api/v1/stop")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, eng.stopped)
	var resp StopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, engine.StateStopped, resp.State)
}

func TestEmergencyStopEndpoint(t *testing.T) {
	eng := &mockEngine{status: engine.Status{State: engine.StateRunning, CacheSize: 5}}
	rec := doRequest(newTestServer(t, eng), http.MethodPost, "/api/v1/emergency-stop")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.emergencyStops)
	var resp StopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, engine.StateEmergencyStopped, resp.State)
}

func TestMetricsEndpoint(t *testing.T) {
	eng := &mockEngine{}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestStopIsMethodRestricted(t *testing.T) {
	eng := &mockEngine{}
	rec := doRequest(newTestServer(t, eng), http.MethodGet, "/api/v1/stop")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, eng.stopped)
}
