package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/alertscope/internal/duckdb"
	"github.com/tinytelemetry/alertscope/internal/model"
)

// QueryStore is the narrow store contract required by the SQL endpoints.
type QueryStore interface {
	model.SchemaQuerier
	ExecuteQueryColumns(query string) ([]string, []map[string]interface{}, error)
	TopValues(dimension string, limit int) ([]model.ChartPoint, error)
}

// Server provides an HTTP API over the current alert snapshot.
type Server struct {
	addr      string
	snapshots model.SnapshotProvider
	store     QueryStore
	server    *http.Server
	listener  net.Listener
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
// store may be nil, in which case the SQL endpoints are not registered.
func NewServer(addr string, snapshots model.SnapshotProvider, store QueryStore) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		snapshots: snapshots,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/charts", s.handleCharts)
	r.GET("/api/charts/:name", s.handleChart)
	r.GET("/api/summary", s.handleSummary)
	r.POST("/api/reload", s.handleReload)

	if s.store != nil {
		r.GET("/api/schema", s.handleSchema)
		r.POST("/api/query", s.handleQuery)
		r.GET("/api/top/:dimension", s.handleTop)
	}
	return r
}

// Start binds the listen address. Requests are served once Serve runs.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()
	return nil
}

// Serve accepts requests until Stop is called. It returns nil after a clean
// shutdown and the listener error otherwise.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("httpserver: Serve called before Start")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpserver: serve: %w", err)
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server. Safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		if s.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
		// Shutdown only closes listeners that Serve picked up.
		if s.listener != nil {
			s.listener.Close()
		}
	})
	return err
}

func (s *Server) snapshot(c *gin.Context) (*model.Snapshot, bool) {
	snap, err := s.snapshots.Snapshot()
	if err != nil || snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot unavailable"})
		return nil, false
	}
	return snap, true
}

func loadedAt(snap *model.Snapshot) interface{} {
	if !snap.Loaded() {
		return nil
	}
	return snap.LoadedAt.UTC().Format(time.RFC3339)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	status := "ok"
	switch {
	case snap.LastError != "":
		status = "degraded"
	case !snap.Loaded():
		status = "loading"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"uptime":     time.Since(s.startTime).String(),
		"source":     snap.Source,
		"records":    snap.Result.Records,
		"loaded_at":  loadedAt(snap),
		"last_error": snap.LastError,
	})
}

func (s *Server) handleCharts(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap.Charts)
}

func (s *Server) handleChart(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	switch name := c.Param("name"); name {
	case "bar":
		c.JSON(http.StatusOK, snap.Charts.Bar)
	case "pie":
		c.JSON(http.StatusOK, snap.Charts.Pie)
	case "timeseries":
		c.JSON(http.StatusOK, snap.Charts.TimeSeries)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown chart %q (want bar, pie or timeseries)", name)})
	}
}

func (s *Server) handleSummary(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":       snap.Source,
		"loaded_at":    loadedAt(snap),
		"records":      snap.Result.Records,
		"by_source_ip": snap.Result.BySourceIP,
		"by_category":  snap.Result.ByCategory,
		"by_date":      snap.Result.ByDate,
		"skipped":      snap.Result.Skipped,
		"last_error":   snap.LastError,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	snap, err := s.snapshots.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     err.Error(),
			"loaded_at": loadedAtOrNil(snap),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "reloaded",
		"records":   snap.Result.Records,
		"loaded_at": loadedAt(snap),
	})
}

func loadedAtOrNil(snap *model.Snapshot) interface{} {
	if snap == nil {
		return nil
	}
	return loadedAt(snap)
}

func (s *Server) handleSchema(c *gin.Context) {
	description := s.store.GetSchemaDescription()

	tables, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": description,
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	columns, results, err := s.store.ExecuteQueryColumns(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}

func (s *Server) handleTop(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 1000"})
			return
		}
		limit = n
	}

	points, err := s.store.TopValues(c.Param("dimension"), limit)
	if errors.Is(err, duckdb.ErrUnknownDimension) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dimension": c.Param("dimension"),
		"values":    points,
	})
}
