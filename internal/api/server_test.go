package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/analysis"
	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/monitoring"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
	"github.com/banshee-data/ride.report/internal/testutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type fakeAnalyzer struct {
	store *db.DB
	err   error
	paths []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (*analysis.Outcome, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	res := storedResult()
	ride, err := f.store.SaveRide(ctx, path, res)
	if err != nil {
		return nil, err
	}
	return &analysis.Outcome{RideID: ride.ID, VideoPath: path, Stored: true, Result: res}, nil
}

func storedResult() *pipeline.Result {
	return &pipeline.Result{
		Summary: verdict.Summary{
			CriticalEvents: []verdict.CriticalEvent{{FrameID: 15, TierLabel: "DANGER", Description: "wrong_way_vehicle"}},
			TotalSamples:   2,
			CriticalFrames: 1,
			SafeFrames:     1,
			RiskPercentage: 50,
			Verdict:        verdict.Unsafe,
			Reason:         "High frequency of critical risks (50.0% of ride). Immediate correction needed.",
			RiderStyle:     verdict.StyleProactive,
		},
		Timeline: []pipeline.TimelinePoint{
			{FrameID: 0, Tier: "SAFE", Description: "STABLE_LANE"},
			{FrameID: 15, Tier: "DANGER", Description: "wrong_way_vehicle"},
		},
	}
}

type fixture struct {
	store    *db.DB
	analyzer *fakeAnalyzer
	media    string
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	media := t.TempDir()
	an := &fakeAnalyzer{store: store}
	return &fixture{
		store:    store,
		analyzer: an,
		media:    media,
		router:   NewServer(store, an, []string{media}).Router(),
	}
}

func (f *fixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = testutil.NewTestRequest(method, path, body)
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = testutil.NewTestRequest(method, path)
	}
	w := testutil.NewTestRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *fixture) seed(t *testing.T) string {
	t.Helper()
	ride, err := f.store.SaveRide(context.Background(), "/media/a.mp4", storedResult())
	require.NoError(t, err)
	return ride.ID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestListRides(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/rides", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	id := f.seed(t)
	w = f.do(http.MethodGet, "/api/rides?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rides []db.Ride
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rides))
	require.Len(t, rides, 1)
	assert.Equal(t, id, rides[0].ID)
	assert.Equal(t, "UNSAFE", rides[0].Verdict)

	for _, bad := range []string{"0", "-1", "abc", "5000"} {
		w = f.do(http.MethodGet, "/api/rides?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}
}

func TestGetRide(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)

	w := f.do(http.MethodGet, "/api/rides/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var ride db.Ride
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ride))
	require.NotNil(t, ride.Result)
	assert.Equal(t, verdict.Unsafe, ride.Result.Verdict)

	w = f.do(http.MethodGet, "/api/rides/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ride not found")
}

func TestRideEvents(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)

	w := f.do(http.MethodGet, "/api/rides/"+id+"/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	var evs []db.RideEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evs))
	require.Len(t, evs, 1)
	assert.Equal(t, "wrong_way_vehicle", evs[0].Description)

	w = f.do(http.MethodGet, "/api/rides/nope/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRideReports(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)

	tests := []struct {
		path        string
		contentType string
		prefix      string
	}{
		{"/report", "text/plain; charset=utf-8", "DHAKA-RIDE SAFETY REPORT"},
		{"/report.html", "text/html; charset=utf-8", ""},
		{"/timeline.png", "image/png", "\x89PNG"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := f.do(http.MethodGet, "/api/rides/"+id+tt.path, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.True(t, strings.HasPrefix(w.Body.String(), tt.prefix))
		})
	}
	w := f.do(http.MethodGet, "/api/rides/missing/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRide(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)

	w := f.do(http.MethodDelete, "/api/rides/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodDelete, "/api/rides/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)
	video := filepath.Join(f.media, "ride.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	w := f.do(http.MethodPost, "/api/analyze", `{"video_path":"`+video+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out analysis.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Stored)
	assert.Equal(t, []string{video}, f.analyzer.paths)

	w = f.do(http.MethodGet, "/api/rides/"+out.RideID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeRejections(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "elsewhere.mp4")

	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing body field", `{}`, nil, http.StatusBadRequest},
		{"malformed json", `{"video_path":`, nil, http.StatusBadRequest},
		{"outside media dirs", `{"video_path":"` + outside + `"}`, nil, http.StatusForbidden},
		{"traversal", `{"video_path":"` + f.media + `/../../etc/passwd"}`, nil, http.StatusForbidden},
		{"bad input", `{"video_path":"` + f.media + `/a.mp4"}`, pipeline.ErrInput, http.StatusBadRequest},
		{"no samples", `{"video_path":"` + f.media + `/a.mp4"}`, pipeline.ErrNoSamples, http.StatusUnprocessableEntity},
		{"internal", `{"video_path":"` + f.media + `/a.mp4"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.analyzer.err = tt.err
			w := f.do(http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestAnalyzeDisabled(t *testing.T) {
	f := newFixture(t)
	r := NewServer(f.store, nil, nil).Router()
	w := testutil.NewTestRecorder()
	r.ServeHTTP(w, testutil.NewTestRequest(http.MethodPost, "/api/analyze", `{"video_path":"x"}`))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotImplemented)
}

func TestHandlerMountsAdminRoutes(t *testing.T) {
	f := newFixture(t)
	h, err := NewServer(f.store, nil, nil).Handler(f.store.AttachAdminRoutes)
	testutil.AssertNoError(t, err)

	w := testutil.NewTestRecorder()
	h.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/api/health"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	w = testutil.NewTestRecorder()
	h.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/debug/tailsql/"))
	assert.NotEqual(t, http.StatusNotFound, w.Code)

	_, err = NewServer(f.store, nil, nil).Handler(func(*http.ServeMux) error { return errors.New("no admin") })
	testutil.AssertError(t, err)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, "101", statusCodeColor(101))
}
