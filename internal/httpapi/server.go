// Package httpapi exposes the engine over HTTP: trigger syncs, inspect
// the canonical appointments, and read the audit trail.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
	syncengine "github.com/kokoraro/salonsync/internal/sync"
)

// Reader is the store read surface the API serves.
type Reader interface {
	ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]*store.Appointment, error)
	ListLogs(ctx context.Context, f store.LogFilter) ([]*store.LogEntry, error)
}

// Trigger starts a background sync cycle. Implemented by
// [syncengine.Scheduler].
type Trigger interface {
	Trigger(ctx context.Context, start, end time.Time) (syncengine.Window, error)
}

// Server holds the router and its collaborators. Create one with [New].
type Server struct {
	reader  Reader
	trigger Trigger
	logger  *slog.Logger
	engine  *gin.Engine
}

func New(reader Reader, trigger Trigger, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		reader:  reader,
		trigger: trigger,
		logger:  logger,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())

	s.engine.GET("/", s.root)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/sync", s.postSync)
	v1.GET("/appointments", s.getAppointments)
	v1.GET("/sync-logs", s.getSyncLogs)
	v1.GET("/health", s.getHealth)

	return s
}

// Handler returns the http.Handler for tests and for http.Server wiring.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the salonsync API"})
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// postSync schedules a cycle and returns immediately; the work happens in
// the background. A cycle already in flight yields 409.
func (s *Server) postSync(c *gin.Context) {
	start, ok := queryTime(c, "start_date")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end_date")
	if !ok {
		return
	}

	// The cycle must not die with this request's context.
	w, err := s.trigger.Trigger(context.WithoutCancel(c.Request.Context()), start, end)
	if err != nil {
		if errors.Is(err, syncengine.ErrCycleRunning) {
			c.JSON(http.StatusConflict, gin.H{"detail": "a synchronization cycle is already running"})
			return
		}
		s.logger.Error("starting sync cycle", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Synchronization started",
		"start_date": w.Start.UTC().Format(time.RFC3339),
		"end_date":   w.End.UTC().Format(time.RFC3339),
	})
}

func (s *Server) getAppointments(c *gin.Context) {
	f := store.AppointmentFilter{}
	var ok bool
	if f.Start, ok = queryTime(c, "start_date"); !ok {
		return
	}
	if f.End, ok = queryTime(c, "end_date"); !ok {
		return
	}
	if f.Source, ok = querySource(c); !ok {
		return
	}

	appts, err := s.reader.ListAppointments(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("listing appointments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	out := make([]appointmentDTO, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentDTO(a))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSyncLogs(c *gin.Context) {
	// "status" is accepted as a legacy alias for the outcome filter.
	outcome := c.Query("outcome")
	if outcome == "" {
		outcome = c.Query("status")
	}
	f := store.LogFilter{Outcome: outcome}
	var ok bool
	if f.Start, ok = queryTime(c, "start_date"); !ok {
		return
	}
	if f.End, ok = queryTime(c, "end_date"); !ok {
		return
	}
	if f.Source, ok = querySource(c); !ok {
		return
	}

	logs, err := s.reader.ListLogs(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("listing sync logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	out := make([]logDTO, 0, len(logs))
	for _, e := range logs {
		out = append(out, toLogDTO(e))
	}
	c.JSON(http.StatusOK, out)
}

// queryTime parses an optional timestamp query parameter, accepting
// RFC 3339 or a bare date. On a malformed value it writes a 400 and
// reports !ok.
func queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name + ": want RFC 3339 or YYYY-MM-DD"})
	return time.Time{}, false
}

func querySource(c *gin.Context) (model.Source, bool) {
	raw := c.Query("source")
	if raw == "" {
		return "", true
	}
	src, err := model.ParseSource(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return "", false
	}
	return src, true
}

// corsMiddleware allows browser dashboards from any origin; the API
// carries no cookies, so the permissive policy is safe.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
