package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"flickrharvest/internal/flickrtest"
	"flickrharvest/pkg/config"
	"flickrharvest/pkg/dataset"
	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/notify"
	"flickrharvest/pkg/region"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var area = region.RegionClock{
	West: 0, South: 0, East: 1, North: 1,
	Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
}

func newTestServer(t *testing.T, opts flickrtest.Options, points int) (*Server, *gin.Engine, *flickrtest.Server, *notify.Recorder) {
	t.Helper()
	fake := flickrtest.New(flickrtest.Scatter(points, 4, 11, area), opts)
	t.Cleanup(fake.Close)

	cfg := config.DefaultConfig()
	cfg.Flickr.APIKey = fake.APIKey()
	cfg.Flickr.BaseURL = fake.BaseURL()
	cfg.Flickr.AssetBaseURL = fake.AssetBaseURL()
	cfg.Flickr.PageSize = 10
	cfg.Flickr.MaxResultsPerQuery = 100
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Harvest.EnrichOwners = false
	cfg.Harvest.OutputDir = t.TempDir()

	log := logger.NewNopLogger()
	published := &notify.Recorder{}
	factory := NewFactory(cfg, harvester.NewClientFactory(cfg, nil, log), published, log)

	s := New(cfg, factory, log)
	t.Cleanup(s.Shutdown)
	return s, s.Router(), fake, published
}

func do(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func startBody() map[string]interface{} {
	return map[string]interface{}{
		"west": 0, "south": 0, "east": 1, "north": 1,
		"start": "2020-01-01", "end": "2020-01-02",
	}
}

func waitForState(t *testing.T, router http.Handler, id string, states ...string) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		w := do(router, http.MethodGet, "/api/v1/harvests/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
			return false
		}
		for _, s := range states {
			if st.State == s && st.Ended != nil {
				return true
			}
		}
		return false
	}, 10*time.Second, 10*time.Millisecond)
	return st
}

func TestHealth(t *testing.T) {
	_, router, _, _ := newTestServer(t, flickrtest.Options{}, 1)

	w := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	_, router, _, _ := newTestServer(t, flickrtest.Options{}, 1)

	do(router, http.MethodGet, "/health", nil)
	w := do(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "flickrharvest_http_requests_total")
}

func TestHarvestLifecycle(t *testing.T) {
	_, router, fake, published := newTestServer(t, flickrtest.Options{}, 250)

	w := do(router, http.MethodPost, "/api/v1/harvests", startBody())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	id := started["id"]
	require.NotEmpty(t, id)

	st := waitForState(t, router, id, "finished")
	assert.Equal(t, 250, st.Total)
	assert.Equal(t, 250, st.Progress)
	require.NotNil(t, st.Records)
	assert.Equal(t, 250, *st.Records)
	assert.Contains(t, st.Messages, "Connection OK")

	w = do(router, http.MethodGet, "/api/v1/harvests/"+id+"/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ds dataset.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ds))
	assert.Len(t, ds.Records, 250)

	w = do(router, http.MethodGet, "/api/v1/harvests/"+id+"/records?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 251)

	w = do(router, http.MethodGet, "/api/v1/harvests", nil)
	assert.Contains(t, w.Body.String(), id)

	assert.NotEmpty(t, published.Of(notify.KindFinished))
	for _, e := range published.Events() {
		assert.Equal(t, id, e.RunID)
	}
	assert.Greater(t, fake.Calls("flickr.photos.search"), 1)
}

func TestCancelHarvest(t *testing.T) {
	release := make(chan struct{})
	s, router, _, _ := newTestServer(t, flickrtest.Options{
		OnSearch: func(page int) { <-release },
	}, 50)

	w := do(router, http.MethodPost, "/api/v1/harvests", startBody())
	require.Equal(t, http.StatusAccepted, w.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	id := started["id"]

	w = do(router, http.MethodDelete, "/api/v1/harvests/"+id, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	close(release)

	st := waitForState(t, router, id, "halted")
	assert.Nil(t, st.Records)

	w = do(router, http.MethodGet, "/api/v1/harvests/"+id+"/records", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, ok := s.get(id)
	assert.True(t, ok)
}

func TestStartRejectsInvalidRequests(t *testing.T) {
	_, router, _, _ := newTestServer(t, flickrtest.Options{}, 1)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing dates", map[string]interface{}{"west": 0, "east": 1}},
		{"bad date", map[string]interface{}{"start": "yesterday", "end": "2020-01-02"}},
		{"latitude out of range", map[string]interface{}{"north": 95, "start": "2020-01-01", "end": "2020-01-02"}},
		{"start after end", map[string]interface{}{"start": "2020-02-01", "end": "2020-01-02"}},
		{"output dir escapes", map[string]interface{}{
			"start": "2020-01-01", "end": "2020-01-02", "download_assets": true, "output_dir": "../elsewhere",
		}},
		{"absolute output dir elsewhere", map[string]interface{}{
			"start": "2020-01-01", "end": "2020-01-02", "download_assets": true, "output_dir": "/etc/flickrharvest",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/v1/harvests", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestConfine(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		dir  string
		want string
		ok   bool
	}{
		{"london", filepath.Join(base, "london"), true},
		{"a/../b", filepath.Join(base, "b"), true},
		{filepath.Join(base, "runs", "1"), filepath.Join(base, "runs", "1"), true},
		{"..", "", false},
		{"../" + filepath.Base(base) + "-other", "", false},
		{filepath.Dir(base), "", false},
	}
	for _, tt := range tests {
		got, err := confine(base, tt.dir)
		if !tt.ok {
			assert.Error(t, err, tt.dir)
			continue
		}
		require.NoError(t, err, tt.dir)
		assert.Equal(t, tt.want, got)
	}

	_, err := confine("", "london")
	assert.Error(t, err)
}

func TestUnknownHarvest(t *testing.T) {
	_, router, _, _ := newTestServer(t, flickrtest.Options{}, 1)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/harvests/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/api/v1/harvests/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/harvests/nope/records", nil).Code)
}
