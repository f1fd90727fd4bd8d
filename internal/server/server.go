// ABOUTME: Reference time server answering clock client exchanges
// ABOUTME: Echoes the client stamp and appends its own over HTTP or WebSocket
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/discovery"
	"github.com/Resonate-Protocol/clocksync-go/internal/metrics"
	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool

	// Skew is added to every reported timestamp, for demonstrations
	Skew time.Duration

	// Now replaces the server clock; nil means time.Now
	Now func() time.Time
}

// Server is the reference time server
type Server struct {
	config   Config
	serverID string
	logger   *zap.Logger

	engine     *gin.Engine
	upgrader   websocket.Upgrader
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *metrics.ServerMetrics

	mdnsManager *discovery.Manager
	tui         *ServerTUI
	stats       stats

	// Control
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new server instance
func New(config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Port == 0 {
		config.Port = clocksync.DefaultPort
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		logger:   logger.Named("server"),
		registry: registry,
		metrics:  metrics.NewServerMetrics(registry),
		upgrader: websocket.Upgrader{
			// Clock clients are not browsers; any origin is accepted
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.GET("/", s.handleClock)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Registry returns the server's metrics registry
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start listens on the configured port and blocks until Stop is called or
// the listener fails
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the server on an existing listener until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Server starting",
		zap.String("name", s.config.Name),
		zap.String("version", version.Version),
		zap.String("id", s.serverID),
		zap.String("addr", ln.Addr().String()))

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        listenerPort(ln, s.config.Port),
			Logger:      s.logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", zap.Error(err))
		}
	}

	if s.config.UseTUI {
		s.tui = NewServerTUI(s.Status())
		go func() {
			if err := s.tui.Start(); err != nil {
				s.logger.Warn("TUI exited with error", zap.Error(err))
			}
		}()
		go func() {
			select {
			case <-s.tui.QuitChan():
				s.Stop()
			case <-s.ctx.Done():
			}
		}()
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("Server shutting down")
	case err := <-errChan:
		s.logger.Error("HTTP server error", zap.Error(err))
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Hijacked WebSocket connections are not tracked by Shutdown
	s.cancel()
	s.wg.Wait()

	if s.tui != nil {
		s.tui.Stop()
	}
	s.logger.Info("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// listenerPort is the TCP port ln is bound to, or fallback for other listeners
func listenerPort(ln net.Listener, fallback int) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return fallback
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// nowMillis returns the server clock in milliseconds since the epoch
func (s *Server) nowMillis() int64 {
	return s.config.Now().Add(s.config.Skew).UnixMilli()
}

// handleClock answers GET / with "<client stamp>,<server stamp>", or
// upgrades to a WebSocket that answers every text frame the same way
func (s *Server) handleClock(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		s.handleWebSocket(c)
		return
	}

	stamp := c.GetHeader(clocksync.ClientTimestampHeader)
	if _, err := clocksync.ParseStamp(stamp); err != nil {
		s.metrics.ObserveRequest("http", http.StatusBadRequest)
		s.stats.rejected.Add(1)
		s.updateTUI()
		s.logger.Debug("Rejected request without a valid timestamp",
			zap.String("remote", c.ClientIP()),
			zap.String("stamp", stamp))
		c.String(http.StatusBadRequest, "missing or invalid %s header", clocksync.ClientTimestampHeader)
		return
	}

	reply := stamp + "," + strconv.FormatInt(s.nowMillis(), 10)
	c.String(http.StatusOK, "%s", reply)
	s.metrics.ObserveRequest("http", http.StatusOK)
	s.stats.answer(c.ClientIP(), reply)
	s.updateTUI()

	if s.config.Debug {
		s.logger.Debug("Answered exchange",
			zap.String("requestID", c.GetHeader(clocksync.RequestIDHeader)),
			zap.String("userAgent", c.Request.UserAgent()),
			zap.String("reply", reply))
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	stop := context.AfterFunc(s.ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	s.metrics.WebSocketOpened()
	s.stats.websockets.Add(1)
	s.updateTUI()
	defer func() {
		s.metrics.WebSocketClosed()
		s.stats.websockets.Add(-1)
		s.updateTUI()
	}()

	requestID := c.GetHeader(clocksync.RequestIDHeader)
	s.logger.Debug("New WebSocket connection",
		zap.String("remote", c.ClientIP()),
		zap.String("requestID", requestID))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket read ended", zap.Error(err))
			}
			return
		}

		stamp := string(data)
		if _, err := clocksync.ParseStamp(stamp); msgType != websocket.TextMessage || err != nil {
			s.metrics.ObserveRequest("websocket", http.StatusBadRequest)
			s.stats.rejected.Add(1)
			msg := websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "expected a decimal timestamp")
			_ = conn.WriteMessage(websocket.CloseMessage, msg)
			return
		}

		reply := stamp + "," + strconv.FormatInt(s.nowMillis(), 10)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.logger.Debug("WebSocket write failed", zap.Error(err))
			return
		}
		s.metrics.ObserveRequest("websocket", http.StatusOK)
		s.stats.answer(c.ClientIP(), reply)
		s.updateTUI()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    s.config.Name,
		"id":      s.serverID,
		"version": version.Version,
		"time":    s.nowMillis(),
	})
}
