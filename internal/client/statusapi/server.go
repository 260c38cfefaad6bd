// Package statusapi exposes the sync engine to local operator tooling over
// HTTP: a status snapshot, sync and reset triggers, and a websocket that
// pushes every status change.
package statusapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Engine is the part of the sync engine the API serves.
type Engine interface {
	Statuses() []syncer.Status
	SyncAll(ctx context.Context, opts syncer.SyncOptions) error
	ResetPersistence(ctx context.Context) error
	OnStatus(fn func(syncer.Status)) (unsubscribe func())
}

// StatusView is the wire form of syncer.Status.
type StatusView struct {
	syncer.Status
	Error string `json:"error,omitempty"`
}

func viewOf(st syncer.Status) StatusView {
	v := StatusView{Status: st}
	if st.LastError != nil {
		v.Error = st.LastError.Error()
	}
	return v
}

// Message is one websocket frame. The first frame after connecting is a
// snapshot carrying every collection; later frames carry one status each.
type Message struct {
	Type     string       `json:"type"`
	Statuses []StatusView `json:"statuses"`
}

const (
	MessageSnapshot = "snapshot"
	MessageStatus   = "status"
)

// SyncRequest is the optional body of POST /api/v1/sync.
type SyncRequest struct {
	ResetLastSync bool `json:"resetLastSync"`
}

type Options struct {
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token string
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
}

type Server struct {
	engine Engine
	log    logging.Logger
	opts   Options
	router *gin.Engine

	mu     sync.Mutex
	srv    *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(e Engine, log logging.Logger, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{engine: e, log: log, opts: opts, ctx: ctx, cancel: cancel}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(s.auth())
	{
		v1.GET("/status", s.handleStatus)
		v1.POST("/sync", s.handleSync)
		v1.POST("/reset", s.handleReset)
		v1.GET("/watch", s.handleWatch)
	}
	return r
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "status api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}
		if !bearerMatches(c.GetHeader("Authorization"), s.opts.Token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// bearerMatches compares the bearer credential of header with token in
// constant time.
func bearerMatches(header, token string) bool {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(h[7:])), []byte(token)) == 1
}

func (s *Server) snapshot() []StatusView {
	sts := s.engine.Statuses()
	out := make([]StatusView, 0, len(sts))
	for _, st := range sts {
		out = append(out, viewOf(st))
	}
	return out
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleSync(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
	}
	err := s.engine.SyncAll(c.Request.Context(), syncer.SyncOptions{ResetLastSync: req.ResetLastSync})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, s.snapshot())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "sync did not finish in time"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.engine.ResetPersistence(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleWatch(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	s.wg.Add(1)
	defer s.wg.Done()

	// Only the latest status per collection matters, so a slow reader drops
	// intermediate frames.
	updates := make(chan syncer.Status, 32)
	unsub := s.engine.OnStatus(func(st syncer.Status) {
		select {
		case updates <- st:
		default:
		}
	})
	defer unsub()

	ctx := conn.CloseRead(s.ctx)
	if err := s.write(ctx, conn, Message{Type: MessageSnapshot, Statuses: s.snapshot()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case st := <-updates:
			if err := s.write(ctx, conn, Message{Type: MessageStatus, Statuses: []StatusView{viewOf(st)}}); err != nil {
				s.log.Debug(ctx, "websocket client gone", "error", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when the port is 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info(s.ctx, "status api listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(s.ctx, "status api stopped", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown closes websocket watchers and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}
