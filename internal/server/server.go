// Package server exposes the pipeline over HTTP for the sales dashboard.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/matching"
	"github.com/reytech/scprs-intel/internal/pull"
	"github.com/reytech/scprs-intel/internal/recommend"
	"github.com/reytech/scprs-intel/internal/store"
)

type Server struct {
	store       *store.Store
	runner      *pull.Runner
	matcher     *matching.Engine
	recommender *recommend.Engine
	logger      *zap.Logger
}

func New(s *store.Store, runner *pull.Runner, matcher *matching.Engine,
	recommender *recommend.Engine, logger *zap.Logger) *Server {
	return &Server{
		store:       s,
		runner:      runner,
		matcher:     matcher,
		recommender: recommender,
		logger:      logger,
	}
}

// Router builds the gin engine with all API routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	api := r.Group("/api")
	{
		api.POST("/pull", s.startPull)
		api.GET("/pull/status", s.pullStatus)
		api.POST("/matching/scan", s.runScan)
		api.GET("/recommendations", s.recommendations)
		api.GET("/gap-items", s.gapItems)
		api.GET("/win-back-items", s.winBackItems)
		api.GET("/suppliers", s.suppliers)
		api.GET("/status", s.status)
	}
	return r
}

type pullRequest struct {
	Agency      string `json:"agency"`
	PriorityCap string `json:"priority_cap"`
}

func (s *Server) startPull(c *gin.Context) {
	req := pullRequest{Agency: "CCHCS", PriorityCap: "all"}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	job, err := s.runner.Start(c.Request.Context(), req.Agency, req.PriorityCap)
	if errors.Is(err, pull.ErrPullInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a pull is already running"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "agency": job.AgencyCode})
}

func (s *Server) pullStatus(c *gin.Context) {
	st, err := s.runner.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if st.Job == nil {
		c.JSON(http.StatusOK, gin.H{"status": "never_run"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) runScan(c *gin.Context) {
	report, err := s.matcher.Scan(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) recommendations(c *gin.Context) {
	recs, err := s.recommender.Recommendations(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) gapItems(c *gin.Context) {
	items, err := s.recommender.GapItems(c.Request.Context(), limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) winBackItems(c *gin.Context) {
	items, err := s.recommender.WinBackItems(c.Request.Context(), limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) suppliers(c *gin.Context) {
	top, err := s.store.TopSuppliers(c.Request.Context(), limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": top})
}

func (s *Server) status(c *gin.Context) {
	totals, err := s.store.Totals(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
