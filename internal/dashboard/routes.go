package dashboard

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/selection"
	"github.com/zulandar/logyard/internal/shell"
	"github.com/zulandar/logyard/internal/stream"
	"go.uber.org/zap"
)

type server struct {
	sh        *shell.Shell
	sel       *selection.Store
	heartbeat time.Duration
	log       *zap.Logger
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	router.GET("/", s.handleIndex)

	api := router.Group("/api")
	api.GET("/state", s.handleState)
	api.GET("/events", s.handleEvents)
	api.GET("/download", s.handleDownload)
	api.POST("/track", s.handleTrack)
	api.POST("/config", s.handleConfig)
	api.POST("/refresh", s.handleRefresh)
	api.POST("/clear", s.handleClear)
	api.POST("/axis", s.handleAxis)
	api.POST("/dismiss", s.handleDismiss)
	api.POST("/share", s.handleShare)
}

func (s *server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "layout.html", gin.H{
		"View": buildView(s.sh),
	})
}

func (s *server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, buildView(s.sh))
}

type trackRequest struct {
	TrainingID string `json:"training_id"`
	Training   bool   `json:"training"`
}

func (s *server) handleTrack(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	s.sh.Controller().Update(req.TrainingID, req.Training)
	c.JSON(http.StatusOK, buildView(s.sh))
}

type configRequest struct {
	ConfigID int `json:"config_id"`
}

func (s *server) handleConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConfigID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "config_id must be a positive integer"})
		return
	}
	s.sh.Controller().SetConfigID(req.ConfigID)
	if s.sel != nil {
		if err := s.sel.SetConfigID(c.Request.Context(), req.ConfigID); err != nil {
			s.log.Warn("persist config id failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, buildView(s.sh))
}

func (s *server) handleRefresh(c *gin.Context) {
	err := s.sh.Refresh(c.Request.Context())
	if errors.Is(err, stream.ErrNoTraining) {
		c.JSON(http.StatusConflict, gin.H{"error": "no training selected"})
		return
	}
	// Fetch failures are already on the view as its error banner.
	c.JSON(http.StatusOK, buildView(s.sh))
}

func (s *server) handleClear(c *gin.Context) {
	s.sh.Clear()
	c.JSON(http.StatusOK, buildView(s.sh))
}

func (s *server) handleDismiss(c *gin.Context) {
	s.sh.DismissError()
	c.JSON(http.StatusOK, buildView(s.sh))
}

// handleAxis toggles the x axis, or sets it when ?axis= is given.
func (s *server) handleAxis(c *gin.Context) {
	if raw := c.Query("axis"); raw != "" {
		a, err := chart.ParseAxis(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.sh.SetAxis(a)
	} else {
		s.sh.ToggleAxis()
	}
	c.JSON(http.StatusOK, buildView(s.sh))
}

func (s *server) handleDownload(c *gin.Context) {
	text := s.sh.Text()
	if text == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": shell.ErrNoLogs.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(s.sh.FileName()))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (s *server) handleShare(c *gin.Context) {
	url, err := s.sh.Share(c.Request.Context())
	switch {
	case errors.Is(err, shell.ErrNoLogs):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, shell.ErrShareDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Warn("share failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
