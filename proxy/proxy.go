package proxy

import (
	"fmt"
	"net/http"

	"github.com/airchains-network/settlement-bridge/bridge"
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// Server exposes the bridge over JSON-RPC, WebSocket subscriptions and
// Prometheus metrics.
type Server struct {
	bridge    *bridge.Bridge
	purses    *custody.Ledger
	nonces    *NonceStore
	chainID   string
	faucet    bool
	gatherer  prometheus.Gatherer
	wsManager *WebSocketManager
	log       *logrus.Logger
}

// ServerConfig holds the settings of the RPC surface.
type ServerConfig struct {
	ChainID string // signature domain
	Faucet  bool   // serve custody_mint
}

// NewServer creates a Server. Signed requests are checked against nonces.
func NewServer(b *bridge.Bridge, purses *custody.Ledger, nonces *NonceStore, cfg ServerConfig, gatherer prometheus.Gatherer, log *logrus.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		bridge:    b,
		purses:    purses,
		nonces:    nonces,
		chainID:   cfg.ChainID,
		faucet:    cfg.Faucet,
		gatherer:  gatherer,
		wsManager: NewWebSocketManager(b, log),
		log:       log,
	}
}

// Handler builds the gin engine. The WebSocket manager must be running
// for /ws subscriptions to receive events.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode) // No debug noise

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	rpcServer := gin.New()
	rpcServer.Use(requestID())
	rpcServer.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[GIN] %s - %s %s %d %v\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Keys[requestIDHeader],
			)
		},
	}))
	rpcServer.Use(gin.Recovery())

	rpcServer.POST("/", s.handleRPC)
	rpcServer.GET("/ws", func(c *gin.Context) {
		handleWebSocket(c, upgrader, s.wsManager)
	})
	rpcServer.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return rpcServer
}

// Start runs the WebSocket manager and serves on port until the listener fails.
func (s *Server) Start(port string) error {
	go s.wsManager.Run()
	defer s.wsManager.Close()

	s.log.Infof("Starting RPC server on %s", port)
	return http.ListenAndServe(port, s.Handler())
}

// requestID tags each request with an id, reusing the client's if it sent one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
