package server

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core"
	"github.com/agenthands/uidn/internal/core/fusion"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/core/network"
	"github.com/agenthands/uidn/internal/core/store"
)

type Server struct {
	Pipeline *core.Pipeline
	// Store is nil when persistence is disabled.
	Store    *store.Store
	Config   config.PipelineConfig
	Analysis config.AnalysisConfig
}

func NewServer(pipeline *core.Pipeline, st *store.Store, cfg config.PipelineConfig, analysis config.AnalysisConfig) *Server {
	return &Server{
		Pipeline: pipeline,
		Store:    st,
		Config:   cfg,
		Analysis: analysis,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.Health)
	r.POST("/cases", s.RunCase)
	r.GET("/cases", s.ListCases)
	r.GET("/cases/:id", s.GetCase)
	r.DELETE("/cases/:id", s.DeleteCase)
	r.GET("/cases/:id/ego", s.GetEgoNetwork)
	r.GET("/cases/:id/path", s.GetPath)

	return r
}

type MediaRequest struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	// Data is the base64 encoded file content.
	Data string `json:"data"`
}

func (m *MediaRequest) ref() (*model.MediaRef, error) {
	if m == nil {
		return nil, nil
	}
	ref := &model.MediaRef{Path: m.Path, URL: m.URL, MIMEType: m.MIMEType}
	if m.Data != "" {
		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return nil, err
		}
		ref.Data = data
	}
	return ref, nil
}

type CaseRequest struct {
	CaseID  string        `json:"case_id"`
	Text    *string       `json:"text"`
	Voice   *MediaRequest `json:"voice"`
	Image   *MediaRequest `json:"image"`
	Analyze bool          `json:"analyze"`
	Briefs  bool          `json:"briefs"`
}

type BatchView struct {
	Modality model.Modality          `json:"modality"`
	Status   model.BatchStatus       `json:"status"`
	Entities []model.CandidateEntity `json:"entities"`
	Attempts int                     `json:"attempts"`
	Error    string                  `json:"error,omitempty"`
}

type CaseResponse struct {
	CaseID   string             `json:"case_id"`
	Graph    *model.FusionGraph `json:"graph,omitempty"`
	Batches  []BatchView        `json:"batches"`
	Report   *fusion.Report     `json:"report,omitempty"`
	Analysis *core.Analysis     `json:"analysis,omitempty"`
	Error    string             `json:"error,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "persistence": s.Store != nil})
}

func (s *Server) RunCase(c *gin.Context) {
	var req CaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	bundle := &model.InputBundle{CaseID: req.CaseID, Text: req.Text}
	if bundle.CaseID == "" {
		bundle.CaseID = uuid.NewString()
	}
	var err error
	if bundle.Voice, err = req.Voice.ref(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voice data is not valid base64"})
		return
	}
	if bundle.Image, err = req.Image.ref(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image data is not valid base64"})
		return
	}

	ctx := c.Request.Context()
	result, err := s.Pipeline.Run(ctx, bundle, s.Config)
	if err != nil {
		if errors.Is(err, model.ErrAllModalitiesFailed) {
			c.JSON(http.StatusUnprocessableEntity, CaseResponse{
				CaseID:  bundle.CaseID,
				Batches: batchViews(result),
				Error:   string(model.PipelineAllModalitiesFailed),
			})
			return
		}
		slog.Error("server: case failed", "case", bundle.CaseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process case"})
		return
	}

	resp := CaseResponse{
		CaseID:  result.CaseID,
		Graph:   result.Graph,
		Batches: batchViews(result),
		Report:  result.Report,
	}

	if req.Analyze {
		analysis, err := s.Pipeline.Analyze(ctx, result.Graph, core.AnalyzeOptions{
			Briefs:                req.Briefs,
			TimelineMinConfidence: s.Analysis.TimelineMinConfidence,
		})
		if err != nil {
			slog.Warn("server: analysis failed", "case", result.CaseID, "error", err)
			resp.Warnings = append(resp.Warnings, "analysis failed")
		} else {
			resp.Analysis = analysis
		}
	}

	if s.Store != nil {
		if err := s.Store.SaveGraph(ctx, result.Graph); err != nil {
			slog.Error("server: failed to persist case", "case", result.CaseID, "error", err)
			resp.Warnings = append(resp.Warnings, "graph was not persisted")
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCases(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "persistence is disabled"})
		return
	}
	ids, err := s.Store.ListCases(c.Request.Context())
	if err != nil {
		slog.Error("server: failed to list cases", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": ids})
}

func (s *Server) GetCase(c *gin.Context) {
	g, ok := s.loadGraph(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) DeleteCase(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "persistence is disabled"})
		return
	}
	err := s.Store.DeleteCase(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrCaseNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	if err != nil {
		slog.Error("server: failed to delete case", "case", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete case"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetEgoNetwork serves the neighbourhood of ?uidn= up to ?depth= hops.
func (s *Server) GetEgoNetwork(c *gin.Context) {
	depth := s.Analysis.EgoDepth
	if depth <= 0 {
		depth = network.DefaultEgoDepth
	}
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be a non-negative integer"})
			return
		}
		depth = d
	}
	uidn := c.Query("uidn")
	if uidn == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uidn is required"})
		return
	}

	g, ok := s.loadGraph(c)
	if !ok {
		return
	}
	ego, err := network.Ego(g, uidn, depth)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ego)
}

// GetPath serves a shortest path between ?from= and ?to=.
func (s *Server) GetPath(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	g, ok := s.loadGraph(c)
	if !ok {
		return
	}
	p, err := network.ShortestPath(g, from, to)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "path": p, "connected": p != nil})
}

// loadGraph writes the error response itself and reports whether g is usable.
func (s *Server) loadGraph(c *gin.Context) (*model.FusionGraph, bool) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "persistence is disabled"})
		return nil, false
	}

	g, err := s.Store.LoadGraph(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrCaseNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return nil, false
	}
	if err != nil {
		slog.Error("server: failed to load case", "case", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
		return nil, false
	}
	return g, true
}

func batchViews(result *core.CaseResult) []BatchView {
	if result == nil || result.Batches == nil {
		return nil
	}
	var views []BatchView
	for _, b := range result.Batches.All() {
		views = append(views, BatchView{
			Modality: b.Modality,
			Status:   b.Status,
			Entities: b.Entities,
			Attempts: b.Attempts,
			Error:    b.ErrorMessage(),
		})
	}
	return views
}
