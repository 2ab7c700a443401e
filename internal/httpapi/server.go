// Package httpapi exposes the HTTP surface: lobby creation, the websocket
// upgrade endpoint, health and metrics.
package httpapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/catalog"
	"github.com/kottz/spektrum-sub000/internal/config"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/playback"
	"github.com/kottz/spektrum-sub000/internal/realtime"
	"github.com/kottz/spektrum-sub000/internal/registry"
)

// Server wires the gin router to the lobby runtime.
type Server struct {
	cfg      *config.Config
	log      *logrus.Logger
	cat      *catalog.Catalog
	reg      *registry.Registry
	m        *metrics.Metrics
	gatherer prometheus.Gatherer
	playback playback.Notifier
	clock    ident.Clock
	upgrader websocket.Upgrader
}

// New builds a Server. gatherer backs the /metrics endpoint.
func New(cfg *config.Config, log *logrus.Logger, cat *catalog.Catalog, reg *registry.Registry, m *metrics.Metrics, gatherer prometheus.Gatherer, pb playback.Notifier) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		cat:      cat,
		reg:      reg,
		m:        m,
		gatherer: gatherer,
		playback: pb,
		clock:    ident.SystemClock{},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router assembles the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.POST("/api/lobbies", s.handleCreateLobby)
	r.GET("/api/question-sets", s.handleQuestionSets)
	r.GET("/ws", s.handleWebSocket)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "lobbies": s.reg.Len()})
}

// CreateLobbyRequest is the lobby creation body.
type CreateLobbyRequest struct {
	RoundDuration *int   `json:"round_duration"`
	QuestionSet   string `json:"question_set"`
}

// CreateLobbyResponse returns the credentials the admin needs.
type CreateLobbyResponse struct {
	LobbyID  string `json:"lobby_id"`
	JoinCode string `json:"join_code"`
	AdminID  string `json:"admin_id"`
}

func (s *Server) handleCreateLobby(c *gin.Context) {
	var req CreateLobbyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var duration time.Duration
	if req.RoundDuration != nil {
		duration = time.Duration(*req.RoundDuration) * time.Second
		if duration <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "round_duration must be positive"})
			return
		}
	}

	lobby, err := s.reg.Create(duration, req.QuestionSet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, CreateLobbyResponse{
		LobbyID:  string(lobby.Engine.ID()),
		JoinCode: lobby.Engine.JoinCode(),
		AdminID:  string(lobby.Engine.AdminID()),
	})
}

// handleQuestionSets lists the set names selectable at lobby creation.
func (s *Server) handleQuestionSets(c *gin.Context) {
	names := s.cat.SetNames()
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"question_sets": names})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	session := realtime.NewSession(conn, realtime.SessionConfig{
		Resolver:   s.reg,
		Clock:      s.clock,
		Log:        s.log,
		Metrics:    s.m,
		Playback:   s.playback,
		BufferSize: s.cfg.Lobby.SessionBuffer,
	})
	session.Run()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, allowed := range s.cfg.Server.CORSOrigins {
			if allowed == "*" || allowed == origin {
				c.Header("Access-Control-Allow-Origin", allowed)
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
