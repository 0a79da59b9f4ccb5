package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

type staticState []events.Fixture

func (s staticState) Snapshot() []events.Fixture { return events.CloneFixtures(s) }

func newAPI() *API {
	return &API{State: staticState{
		{Teams: []string{"A", "B"}, HomeOdd: "1/2"},
		{Teams: []string{"C", "D"}, Score: "1–0"},
	}}
}

func TestListFixtures(t *testing.T) {
	rec := httptest.NewRecorder()
	newAPI().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fixtures", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var ld events.LiveData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ld))
	assert.True(t, ld.IsRebuild())
	assert.Len(t, ld.Data, 2)
	assert.NotZero(t, ld.Ts)
}

func TestGetFixture(t *testing.T) {
	h := newAPI().Handler()
	tests := []struct {
		path string
		code int
	}{
		{"/v1/fixtures/1", http.StatusOK},
		{"/v1/fixtures/2", http.StatusNotFound},
		{"/v1/fixtures/-1", http.StatusBadRequest},
		{"/v1/fixtures/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fixtures/1", nil))
	var f events.Fixture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "1–0", f.Score)
}

func TestWebSocketRouteDelegates(t *testing.T) {
	called := false
	api := newAPI()
	api.WS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/fixtures", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	newAPI().Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
