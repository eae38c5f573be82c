package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
)

type stubService struct {
	mu         sync.Mutex
	result     *models.DividendsResult
	background *models.BackgroundUpdateResult
	status     models.JobStatus
	info       models.CacheInfo
	clearOK    bool
	forced     []bool
	cleared    int
}

func (s *stubService) GetDividends(ctx context.Context, force bool) *models.DividendsResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = append(s.forced, force)
	// handlers sort the result in place; hand out a copy
	res := *s.result
	res.Dividends = models.DividendSet{
		Confirmed: append([]models.DividendRecord(nil), s.result.Dividends.Confirmed...),
		Forecast:  append([]models.DividendRecord(nil), s.result.Dividends.Forecast...),
	}
	return &res
}

func (s *stubService) StartBackgroundUpdate() *models.BackgroundUpdateResult {
	return s.background
}

func (s *stubService) GetJobStatus() models.JobStatus { return s.status }

func (s *stubService) GetCacheInfo() models.CacheInfo { return s.info }

func (s *stubService) ClearCache() bool {
	s.cleared++
	return s.clearOK
}

func newTestServer(t *testing.T, svc *stubService) http.Handler {
	t.Helper()
	cfg := common.NewDefaultConfig()
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return newServer(cfg, common.NewSilentLogger(), svc, ws).Handler()
}

func sampleResult() *models.DividendsResult {
	ts := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	set := models.NewDividendSet()
	set.Confirmed = []models.DividendRecord{
		models.NewDividendRecord("Repsol", "25-Ene", "0,40 €", "4,1%", ""),
		models.NewDividendRecord("BBVA", "20-Feb", "0,25 €", "2,8%", ""),
		models.NewDividendRecord("Ébro Foods", "03-Ene", "0,19 €", "-", ""),
	}
	set.Forecast = []models.DividendRecord{
		models.NewDividendRecord("Iberdrola", "05-Feb", "0,35 €", "3,8%", ""),
	}
	return &models.DividendsResult{Dividends: set, LastUpdate: &ts, FromCache: true}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func companies(records []models.DividendRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Company
	}
	return out
}

func TestHandleGetDividends_ReturnsCachedSet(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	h := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/dividendos")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body struct {
		Dividendos struct {
			Confirmados []map[string]string `json:"confirmados"`
			Previstos   []map[string]string `json:"previstos"`
		} `json:"dividendos"`
		LastUpdate string `json:"lastUpdate"`
		FromCache  bool   `json:"fromCache"`
		Updating   bool   `json:"updating"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.FromCache)
	assert.False(t, body.Updating)
	assert.Equal(t, "2026-01-10T08:00:00Z", body.LastUpdate)
	require.Len(t, body.Dividendos.Confirmados, 3)
	assert.Equal(t, "Repsol", body.Dividendos.Confirmados[0]["empresa"])
	assert.Equal(t, "-", body.Dividendos.Confirmados[0]["recomendacion"])
	assert.Len(t, body.Dividendos.Previstos, 1)
	assert.Equal(t, []bool{false}, svc.forced)
}

func TestHandleGetDividends_Sort(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	h := newTestServer(t, svc)

	tests := []struct {
		query string
		want  []string
	}{
		{"?sort=fecha", []string{"Ébro Foods", "Repsol", "BBVA"}},
		{"?sort=fecha&order=desc", []string{"BBVA", "Repsol", "Ébro Foods"}},
		{"?sort=importe&order=desc", []string{"Repsol", "BBVA", "Ébro Foods"}},
		{"?sort=rentabilidad", []string{"BBVA", "Repsol", "Ébro Foods"}},
		{"?sort=rentabilidad&order=desc", []string{"Repsol", "BBVA", "Ébro Foods"}},
		{"?sort=empresa", []string{"BBVA", "Ébro Foods", "Repsol"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, "/api/dividendos"+tt.query)
			require.Equal(t, http.StatusOK, rr.Code)

			var res models.DividendsResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.Equal(t, tt.want, companies(res.Dividends.Confirmed))
		})
	}
}

func TestHandleGetDividends_InvalidSort(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	h := newTestServer(t, svc)

	for _, q := range []string{"?sort=recomendacion", "?sort=fecha&order=sideways"} {
		rr := do(t, h, http.MethodGet, "/api/dividendos"+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
	assert.Empty(t, svc.forced)
}

func TestHandleForceUpdate(t *testing.T) {
	res := sampleResult()
	res.FromCache = false
	res.Error = "listing fetch failed"
	svc := &stubService{result: res}
	h := newTestServer(t, svc)

	rr := do(t, h, http.MethodPost, "/api/dividendos/update")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []bool{true}, svc.forced)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "listing fetch failed", body["error"])
}

func TestHandleForceUpdate_RejectsGet(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	h := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/dividendos/update")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Empty(t, svc.forced)
}

func TestHandleBackgroundUpdate(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &stubService{background: &models.BackgroundUpdateResult{Accepted: true, Message: "Update started"}}
		rr := do(t, newTestServer(t, svc), http.MethodPost, "/api/dividendos/update/background")
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("already running", func(t *testing.T) {
		svc := &stubService{background: &models.BackgroundUpdateResult{
			AlreadyRunning: true,
			Progress:       40,
			CurrentItem:    "Repsol",
		}}
		rr := do(t, newTestServer(t, svc), http.MethodPost, "/api/dividendos/update/background")
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, true, body["alreadyRunning"])
		assert.Equal(t, float64(40), body["progress"])
		assert.Equal(t, "Repsol", body["currentCompany"])
	})
}

func TestHandleJobStatus(t *testing.T) {
	started := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	status := models.JobStatus{
		Running:        true,
		StartedAt:      &started,
		TotalItems:     10,
		ProcessedItems: 3,
		CurrentItem:    "BBVA",
	}
	status.Recompute()
	svc := &stubService{status: status}

	rr := do(t, newTestServer(t, svc), http.MethodGet, "/api/dividendos/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["updating"])
	assert.Equal(t, float64(30), body["progress"])
	assert.Equal(t, "BBVA", body["currentCompany"])
}

func TestHandleCacheInfo(t *testing.T) {
	svc := &stubService{info: models.CacheInfo{FileSize: 512, RecordCount: 4, SchemaVersion: "1.0"}}

	rr := do(t, newTestServer(t, svc), http.MethodGet, "/api/cache/info")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(4), body["recordCount"])
	assert.Equal(t, "1.0", body["version"])
}

func TestHandleCacheClear(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubService{clearOK: true}
		rr := do(t, newTestServer(t, svc), http.MethodDelete, "/api/cache/clear")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"message":"Cache cleared"}`, rr.Body.String())
		assert.Equal(t, 1, svc.cleared)
	})

	t.Run("failure", func(t *testing.T) {
		svc := &stubService{}
		rr := do(t, newTestServer(t, svc), http.MethodDelete, "/api/cache/clear")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), `"success":false`)
	})
}

func TestHandleHealthAndVersion(t *testing.T) {
	h := newTestServer(t, &stubService{})

	rr := do(t, h, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, common.GetVersion(), health["version"])
	_, err := time.Parse(time.RFC3339, health["timestamp"])
	assert.NoError(t, err)

	rr = do(t, h, http.MethodGet, "/api/version")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"build"`)
}

func TestRoutes_JobsWebsocketMounted(t *testing.T) {
	rr := do(t, newTestServer(t, &stubService{}), http.MethodGet, "/api/jobs/ws")
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRoutes_NotFoundIsJSON(t *testing.T) {
	rr := do(t, newTestServer(t, &stubService{}), http.MethodGet, "/api/portfolios")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())
}

func TestWriteJSON_NoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]int{"n": 1})
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"n":1}`, rr.Body.String())
}
