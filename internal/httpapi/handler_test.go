package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shift-planner/internal/engine"
	"shift-planner/internal/logger"
	"shift-planner/internal/progress"
	"shift-planner/internal/repository"
	"shift-planner/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "api.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	versions, err := repository.NewGormScheduleVersionRepository(db)
	require.NoError(t, err)
	versions.SetLogger(logger.Discard())
	orgRepo, err := repository.NewGormOrgConfigRepository(db)
	require.NoError(t, err)
	orgRepo.SetLogger(logger.Discard())

	plog, err := progress.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { plog.Close() })

	history := service.NewHistoryService(versions, engine.DefaultLabels(), nil)
	history.SetLogger(logger.Discard())
	orgs := service.NewOrgConfigService(orgRepo)
	orgs.SetLogger(logger.Discard())
	schedules := service.NewScheduleService(versions, history, orgs, plog, engine.NewPipeline(engine.WithPause(0)))
	schedules.SetLogger(logger.Discard())

	h, err := NewHandler(schedules, orgs, plog, logger.Discard())
	require.NoError(t, err)
	h.RegisterRoutes()

	srv := httptest.NewServer(h.Mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func saveBody(base any) map[string]any {
	return map[string]any{
		"team":          "ops",
		"viewStart":     "2024-04-01",
		"viewEnd":       "2024-04-03",
		"employees":     []string{"甲", "乙"},
		"data":          map[string]map[string]string{"2024-04-01": {"甲": "白", "乙": "中1"}},
		"operator":      "小王",
		"baseVersionId": base,
	}
}

func TestScheduleSaveFetchAndConflict(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/schedule", saveBody(nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	first := body["version_id"].(float64)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/schedule?team=ops&start=2024-04-01&end=2024-04-03", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, body["versionId"])
	assert.Equal(t, "2024-04-01", body["start"])
	assert.Contains(t, body, "historyProfile")

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/schedule", saveBody(fmt.Sprint(first)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/schedule", saveBody(first))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.EqualValues(t, 409, body["code"])
	assert.Equal(t, first+1, body["latest_version_id"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/schedule/versions?team=ops", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["versions"], 2)
}

func TestScheduleValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	bad := saveBody(nil)
	bad["data"] = map[string]map[string]string{"2024-04-01": {"甲": "早"}}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/schedule", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["message"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/schedule?start=2024-04-03&end=2024-04-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/schedule/versions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/schedule/versions/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/schedule/export?team=ops&start=2024-04-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVersionGetAndDelete(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/schedule", saveBody(nil))
	id := int(body["version_id"].(float64))
	url := fmt.Sprintf("%s/api/schedule/versions/%d?team=ops", srv.URL, id)

	resp, body := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "小王", body["createdByName"])

	resp, _ = doJSON(t, http.MethodDelete, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateAndNight(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/schedule/generate", map[string]any{
		"viewStart": "2024-04-01",
		"viewEnd":   "2024-04-07",
		"employees": []string{"甲", "乙", "丙"},
		"rMin":      0.3,
		"rMax":      0.7,
		"pMin":      0.3,
		"pMax":      0.7,
		"mixMax":    1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "completed", body["outcome"])
	assert.Len(t, body["data"], 7)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/schedule/night", map[string]any{
		"viewStart":    "2024-04-01",
		"viewEnd":      "2024-04-07",
		"employees":    []string{"甲"},
		"nightWindows": []map[string]string{{"start": "2024-04-01", "end": "2024-04-07"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "夜", data["2024-04-01"].(map[string]any)["甲"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/schedule/generate", map[string]any{
		"viewStart": "2024-04-01",
		"viewEnd":   "2024-04-07",
		"employees": []string{"甲"},
		"rMin":      0.9,
		"rMax":      0.1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportXLSX(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/schedule", saveBody(nil))

	resp, err := http.Get(srv.URL + "/api/schedule/export?team=ops&start=2024-04-01&end=2024-04-03")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("排班")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"日期", "星期", "甲", "乙"}, rows[0])
	assert.Equal(t, []string{"2024-04-01", "周一", "白", "中1"}, rows[1])
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/schedule/export?start=2024-04-01&end=2024-04-02&format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\xEF\xBB\xBF日期,星期")))
}

func TestProgressEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/progress", map[string]any{"team": "ops", "message": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, progress.ErrEmptyMessage.Error(), body["message"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/progress", map[string]any{"team": "ops", "message": "开始", "progress": 150})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/progress?team=ops&limit=0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, progress.DefaultLimit, body["limit"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 100, items[0].(map[string]any)["progress"])
}

func TestOrgConfigEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/org-config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["updated_at"])

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/org-config", map[string]any{
		"config": map[string]any{
			"teams": []map[string]any{{"name": "运维组", "employees": []string{"甲"}}},
			"theme": "dark",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/org-config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := body["config"].(map[string]any)
	assert.Equal(t, "yun-wei-zu", cfg["activeTeam"])
	assert.Equal(t, "dark", cfg["theme"])
	assert.NotNil(t, body["updated_at"])

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/org-config", map[string]any{"config": nil})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
