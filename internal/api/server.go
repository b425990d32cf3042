// Package api exposes stored ride analyses and on-demand analysis over
// HTTP using gin.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/banshee-data/ride.report/internal/analysis"
	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/monitoring"
	"github.com/banshee-data/ride.report/internal/report"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/security"
	"github.com/banshee-data/ride.report/internal/version"
)

// RideStore is the read side of the ride database.
type RideStore interface {
	ListRides(ctx context.Context, limit int) ([]db.Ride, error)
	GetRide(ctx context.Context, id string) (*db.Ride, error)
	RideEvents(ctx context.Context, id string) ([]db.RideEvent, error)
	DeleteRide(ctx context.Context, id string) error
}

// Analyzer runs a new analysis. *analysis.Service implements it.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analysis.Outcome, error)
}

type Server struct {
	store     RideStore
	analyzer  Analyzer
	mediaDirs []string
}

// NewServer builds the API. Analysis requests may only name videos inside
// mediaDirs; with no media dirs the analyse endpoint is disabled.
func NewServer(store RideStore, analyzer Analyzer, mediaDirs []string) *Server {
	return &Server{store: store, analyzer: analyzer, mediaDirs: mediaDirs}
}

// ANSI colours for the request log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

func statusCodeColor(code int) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 200 && code < 300:
		return colorBoldGreen + s + colorReset
	case code >= 300 && code < 400:
		return colorYellow + s + colorReset
	case code >= 400:
		return colorBoldRed + s + colorReset
	default:
		return s
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		monitoring.Logf("[%s] %s %s%s%s %vms",
			statusCodeColor(c.Writer.Status()), c.Request.Method,
			colorCyan, c.Request.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	}
}

// Router returns the gin engine with every API route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), LoggingMiddleware())

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/rides", s.listRides)
	api.GET("/rides/:id", s.getRide)
	api.DELETE("/rides/:id", s.deleteRide)
	api.GET("/rides/:id/events", s.rideEvents)
	api.GET("/rides/:id/report", s.rideReportText)
	api.GET("/rides/:id/report.html", s.rideReportHTML)
	api.GET("/rides/:id/timeline.png", s.rideTimelinePNG)
	api.POST("/analyze", s.analyze)
	return r
}

// Handler mounts the API at / and lets attach register admin routes on
// the same mux.
func (s *Server) Handler(attach func(*http.ServeMux) error) (http.Handler, error) {
	mux := http.NewServeMux()
	if attach != nil {
		if err := attach(mux); err != nil {
			return nil, err
		}
	}
	mux.Handle("/", s.Router())
	return mux, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrRideNotFound):
		return http.StatusNotFound
	case errors.Is(err, security.ErrOutsideDirectory):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoSamples):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= 500 {
		monitoring.Logf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(code, errorBody{Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
}

func (s *Server) listRides(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	rides, err := s.store.ListRides(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rides)
}

func (s *Server) getRide(c *gin.Context) {
	ride, err := s.store.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

func (s *Server) deleteRide(c *gin.Context) {
	if err := s.store.DeleteRide(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) rideEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRide(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	evs, err := s.store.RideEvents(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

// render loads a ride and writes one of its report formats.
func (s *Server) render(c *gin.Context, contentType string, fn func(io.Writer, *pipeline.Result) error) {
	ride, err := s.store.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := fn(&buf, ride.Result); err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) rideReportText(c *gin.Context) {
	s.render(c, "text/plain; charset=utf-8", report.WriteText)
}

func (s *Server) rideReportHTML(c *gin.Context) {
	s.render(c, "text/html; charset=utf-8", report.WriteHTML)
}

func (s *Server) rideTimelinePNG(c *gin.Context) {
	s.render(c, "image/png", report.WritePNG)
}

type analyzeRequest struct {
	VideoPath string `json:"video_path" binding:"required"`
}

func (s *Server) analyze(c *gin.Context) {
	if s.analyzer == nil || len(s.mediaDirs) == 0 {
		c.JSON(http.StatusNotImplemented, errorBody{Error: "analysis is not enabled on this server"})
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := security.ValidatePathWithinAllowedDirs(req.VideoPath, s.mediaDirs); err != nil {
		fail(c, err)
		return
	}
	out, err := s.analyzer.Analyze(c.Request.Context(), req.VideoPath)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
