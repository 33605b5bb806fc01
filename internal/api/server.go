package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nyasuto/lsmkv/internal/lsm"
)

// Server exposes an Engine over HTTP: JWT/API-key authenticated CRUD on
// individual keys plus a bounded scan, behind the same gin router shape the
// teacher's original REST surface used.
type Server struct {
	engine *lsm.Engine
	port   string
	router *gin.Engine
	auth   *AuthManager
	logger *zap.Logger
}

// NewServer opens an engine at dataPath and wires it into a gin router
// listening on port.
func NewServer(dataPath, port string, opts lsm.Options) (*Server, error) {
	engine, err := lsm.Open(dataPath, opts)
	if err != nil {
		return nil, fmt.Errorf("lsmkv: start server: %w", err)
	}
	auth := NewAuthManager()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		engine: engine,
		port:   port,
		router: router,
		auth:   auth,
		logger: opts.Logger,
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.healthCheck)
		api.POST("/login", s.login)

		protected := api.Group("/")
		protected.Use(s.AuthMiddleware())
		{
			protected.GET("/stats", s.getStats)
			protected.GET("/scan", s.scanKeys)

			kv := protected.Group("/kv")
			{
				kv.PUT("/:key", s.putKey)
				kv.GET("/:key", s.getKey)
				kv.DELETE("/:key", s.deleteKey)
			}
		}
	}
}

// Start runs the HTTP server until it errors or the process exits.
func (s *Server) Start() error {
	fmt.Printf("starting lsmkv server on port %s\n", s.port)
	return http.ListenAndServe(":"+s.port, s.router)
}

// Close shuts down the underlying engine.
func (s *Server) Close() error {
	return s.engine.Close()
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lsmkv-server",
	})
}

func (s *Server) getStats(c *gin.Context) {
	s.successResponse(c, http.StatusOK, gin.H{
		"structure": s.engine.DumpStructure(),
	}, 0)
}
