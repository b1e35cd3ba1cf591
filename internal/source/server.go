// Package source serves training logs over the endpoints the stream
// controller follows: a JSON snapshot, an event stream and a websocket.
// Lines are stored with gorm and can be fed by HTTP POST or by tailing a file.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/logyard/internal/logging"
	"go.uber.org/zap"
)

// DefaultBasePath is where the training-log routes are mounted.
const DefaultBasePath = "/api/model/training-logs"

// Options configures the source HTTP handler.
type Options struct {
	Store        *Store
	BasePath     string
	PushInterval time.Duration // how often stream and socket clients are sent new lines
	Heartbeat    time.Duration
	Logger       *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.BasePath == "" {
		o.BasePath = DefaultBasePath
	}
	if o.PushInterval <= 0 {
		o.PushInterval = 500 * time.Millisecond
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = 15 * time.Second
	}
	o.Logger = logging.OrNop(o.Logger)
}

// NewHandler builds the gin router serving the training-log routes.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("source: store is required")
	}
	opts.applyDefaults()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{opts: opts, log: opts.Logger}
	g := router.Group(opts.BasePath)
	g.GET("", h.list)
	g.GET("/:id", h.snapshot)
	g.POST("/:id", h.appendLines)
	g.GET("/:id/stream", h.stream)
	g.GET("/:id/ws", h.socket)
	return router, nil
}

// StartOpts holds configuration for the source server.
type StartOpts struct {
	Options
	Port int
	Out  io.Writer
}

// Start launches the source HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	handler, err := NewHandler(opts.Options)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		base := opts.BasePath
		if base == "" {
			base = DefaultBasePath
		}
		fmt.Fprintf(opts.Out, "Log source running at http://localhost:%d%s\n", opts.Port, base)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("source: %w", err)
	}
	return nil
}

type handlers struct {
	opts Options
	log  *zap.Logger
}

// snapshotBody mirrors what the stream snapshot client decodes.
type snapshotBody struct {
	Logs    []string `json:"logs"`
	Error   bool     `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
}

// appendBody accepts either one line or a batch.
type appendBody struct {
	Log  *string  `json:"log"`
	Logs []string `json:"logs"`
}

func (h *handlers) list(c *gin.Context) {
	ids, err := h.opts.Store.Trainings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"trainings": ids})
}

func (h *handlers) snapshot(c *gin.Context) {
	id := c.Param("id")
	rows, err := h.opts.Store.Lines(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, snapshotBody{Logs: []string{}, Error: true, Message: err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, snapshotBody{Logs: []string{}, Error: true, Message: fmt.Sprintf("No logs found for training %s", id)})
		return
	}
	c.JSON(http.StatusOK, snapshotBody{Logs: Contents(rows)})
}

func (h *handlers) appendLines(c *gin.Context) {
	id := c.Param("id")
	var body appendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid body: " + err.Error()})
		return
	}
	lines := body.Logs
	if body.Log != nil {
		lines = append(lines, *body.Log)
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "log or logs is required"})
		return
	}
	configID := queryConfigID(c)
	rows, err := h.opts.Store.Append(c.Request.Context(), id, configID, lines...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": err.Error()})
		return
	}
	h.log.Debug("lines appended", zap.String("training_id", id), zap.Int("count", len(rows)))
	c.JSON(http.StatusCreated, gin.H{"appended": len(rows), "last_id": lastID(rows, 0)})
}

// stream sends the backlog as one history event, then each new line as a
// log event, until the client goes away.
func (h *handlers) stream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	rows, err := h.opts.Store.Lines(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": err.Error()})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("history", Contents(rows))
	c.Writer.Flush()

	h.log.Debug("stream opened",
		zap.String("training_id", id),
		zap.Int("config_id", queryConfigID(c)),
		zap.Int("backlog", len(rows)))

	last := lastID(rows, 0)
	ticker := time.NewTicker(h.opts.PushInterval)
	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case <-ticker.C:
			fresh, err := h.opts.Store.LinesAfter(ctx, id, last)
			if err != nil {
				h.log.Warn("stream poll failed", zap.String("training_id", id), zap.Error(err))
				continue
			}
			if len(fresh) == 0 {
				continue
			}
			for _, r := range fresh {
				c.Render(-1, sse.Event{Event: "log", Data: lineData(r.Content)})
			}
			c.Writer.Flush()
			last = lastID(fresh, last)
		}
	}
}

// lineData prefixes every data line with a space so a leading space in the
// log line survives the field parser.
func lineData(line string) []byte {
	return []byte(" " + strings.ReplaceAll(line, "\n", "\n "))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// socket sends {"logs": backlog} as the first frame, then one text frame per
// new line.
func (h *handlers) socket(c *gin.Context) {
	id := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// Drain client frames so close and ping control frames are handled.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	rows, err := h.opts.Store.Lines(ctx, id)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "store error"))
		return
	}
	if err := conn.WriteJSON(snapshotBody{Logs: Contents(rows)}); err != nil {
		return
	}

	last := lastID(rows, 0)
	ticker := time.NewTicker(h.opts.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			fresh, err := h.opts.Store.LinesAfter(ctx, id, last)
			if err != nil {
				h.log.Warn("socket poll failed", zap.String("training_id", id), zap.Error(err))
				continue
			}
			for _, r := range fresh {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(r.Content)); err != nil {
					return
				}
			}
			last = lastID(fresh, last)
		}
	}
}

func queryConfigID(c *gin.Context) int {
	if v, err := strconv.Atoi(c.Query("configId")); err == nil && v > 0 {
		return v
	}
	return 1
}
