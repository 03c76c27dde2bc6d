package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/garyjia/standort-workflow/internal/container"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := container.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "standort.db")

	c, err := container.NewContainer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	config := DefaultServerConfig()
	config.Mode = gin.TestMode
	config.DefaultReportDays = 0

	return NewServer(config, Deps{
		Engine:    c.WorkflowEngine(),
		Locations: c.Services().Location,
		Reports:   c.Services().Report,
		Health:    c,
	}, nopLogger{})
}

type envelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Error   string                `json:"error"`
	Fields  []domainwf.FieldError `json:"fields"`
}

func do(t *testing.T, s *Server, method, path string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func captureBody() map[string]interface{} {
	return map[string]interface{}{
		"erfasser":         "Anna Berger",
		"datum":            "2024-03-01",
		"standort":         "Hauptstraße 12",
		"stadt":            "Berlin",
		"lat":              52.52,
		"lng":              13.405,
		"eigentuemer":      entity.OwnerCity,
		"seiten":           entity.SidesTwo,
		"vermarktungsform": entity.VariantCityScreen,
	}
}

func capture(t *testing.T, s *Server) entity.Location {
	t.Helper()
	code, env := do(t, s, http.MethodPost, "/api/locations", captureBody())
	require.Equal(t, http.StatusCreated, code, env.Error)

	var loc entity.Location
	require.NoError(t, json.Unmarshal(env.Data, &loc))
	return loc
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var health container.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.True(t, health.Overall)
	assert.Contains(t, health.Components, "database")
}

func TestListSteps(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodGet, "/api/steps", nil)
	assert.Equal(t, http.StatusOK, code)

	var steps []struct {
		Step      string   `json:"step"`
		Decisions []string `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &steps))
	require.NotEmpty(t, steps)
	assert.Equal(t, string(domainwf.StepErfassung), steps[0].Step)
}

func TestCaptureLocation(t *testing.T) {
	s := newTestServer(t)

	loc := capture(t, s)
	assert.NotEmpty(t, loc.ID)
	assert.Equal(t, domainwf.StepLeiterAkquisition, loc.CurrentStep)

	code, env := do(t, s, http.MethodGet, "/api/locations/"+loc.ID+"/history", nil)
	assert.Equal(t, http.StatusOK, code)
	var entries []entity.HistoryEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, domainwf.StepErfassung, entries[0].Step)
}

func TestCaptureLocation_Errors(t *testing.T) {
	s := newTestServer(t)

	code, env := do(t, s, http.MethodPost, "/api/locations", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	body := captureBody()
	body["datum"] = "01.03.2024"
	code, _ = do(t, s, http.MethodPost, "/api/locations", body)
	assert.Equal(t, http.StatusBadRequest, code, "unparseable date")

	body = captureBody()
	delete(body, "stadt")
	body["vermarktungsform"] = "Litfaßsäule"
	code, env = do(t, s, http.MethodPost, "/api/locations", body)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	fields := make([]string, 0, len(env.Fields))
	for _, f := range env.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"stadt", "vermarktungsform"}, fields)
}

func TestDecide(t *testing.T) {
	s := newTestServer(t)
	loc := capture(t, s)
	path := "/api/locations/" + loc.ID + "/decisions"

	approve := map[string]interface{}{
		"step":     domainwf.StepLeiterAkquisition,
		"decision": domainwf.DecisionApprove,
		"comment":  "passt",
	}

	code, env := do(t, s, http.MethodPost, path, approve, ActorHeader, "Leitung Akquisition")
	require.Equal(t, http.StatusOK, code, env.Error)
	var updated entity.Location
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.NotEqual(t, domainwf.StepLeiterAkquisition, updated.CurrentStep)

	_, env = do(t, s, http.MethodGet, "/api/locations/"+loc.ID+"/history", nil)
	var entries []entity.HistoryEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Leitung Akquisition", entries[1].User, "actor falls back to header")

	code, env = do(t, s, http.MethodPost, path, approve, ActorHeader, "Leitung Akquisition")
	assert.Equal(t, http.StatusConflict, code, "repeated decision is stale")
	assert.Contains(t, env.Error, "reload")

	code, _ = do(t, s, http.MethodPost, "/api/locations/missing/decisions", approve)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPost, path, map[string]interface{}{
		"step":     updated.CurrentStep,
		"decision": domainwf.DecisionFinalize,
		"actor":    "Niederlassung",
	})
	assert.Equal(t, http.StatusBadRequest, code, "decision not accepted at this step")

	code, _ = do(t, s, http.MethodPost, path, map[string]interface{}{
		"step":     "vertragspruefung",
		"decision": domainwf.DecisionApprove,
	})
	assert.Equal(t, http.StatusBadRequest, code, "unknown step")
}

func TestDecide_Terminal(t *testing.T) {
	s := newTestServer(t)
	loc := capture(t, s)
	path := "/api/locations/" + loc.ID + "/decisions"

	code, env := do(t, s, http.MethodPost, path, map[string]interface{}{
		"step":     domainwf.StepLeiterAkquisition,
		"decision": domainwf.DecisionReject,
		"actor":    "Leitung Akquisition",
		"comment":  "Standort ungeeignet",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = do(t, s, http.MethodPost, path, map[string]interface{}{
		"step":     domainwf.StepLeiterAkquisitionRejected,
		"decision": domainwf.DecisionApprove,
		"actor":    "Leitung Akquisition",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestListAndPurge(t *testing.T) {
	s := newTestServer(t)
	first := capture(t, s)
	capture(t, s)

	code, env := do(t, s, http.MethodGet, "/api/locations?variant="+entity.VariantCityScreen+"&limit=1", nil)
	assert.Equal(t, http.StatusOK, code)
	var page []entity.Location
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page, 1)

	code, _ = do(t, s, http.MethodGet, "/api/locations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodDelete, "/api/locations/"+first.ID, nil, ActorHeader, "admin")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodGet, "/api/locations/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodGet, "/api/locations/"+first.ID+"/history", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	capture(t, s)

	code, env := do(t, s, http.MethodGet, "/api/reports/summary", nil)
	assert.Equal(t, http.StatusOK, code)
	var summary struct {
		Total      int `json:"total"`
		InProgress int `json:"in_progress"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.InProgress)

	for _, path := range []string{
		"/api/reports/counts?days=30",
		"/api/reports/funnel",
		"/api/reports/intake",
		"/api/reports/durations",
		"/api/reports/durations?pair=erfassung:leiter_akquisition",
	} {
		code, env = do(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, code, "%s: %s", path, env.Error)
	}

	code, _ = do(t, s, http.MethodGet, "/api/reports/durations?pair=erfassung", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodGet, "/api/reports/summary?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDateUnmarshal(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01"`), &d))
	assert.Equal(t, 2024, d.Year())

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T10:00:00+02:00"`), &d))
	assert.Equal(t, 8, d.Hour())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Nil(t, d.ptr())

	assert.Error(t, json.Unmarshal([]byte(`"March 1st"`), &d))
}
