package stub

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/response"
)

// Server bundles the stub API: store, auth secret, gin engine.
type Server struct {
	store  *Store
	secret string
	log    zerolog.Logger
	engine *gin.Engine
}

// NewServer creates a stub server with an empty store. Seed exams via
// Store() before starting traffic.
func NewServer(secret string, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	setupValidator()

	s := &Server{
		store:  NewStore(),
		secret: secret,
		log:    log.With().Str("component", "stub_server").Logger(),
	}
	s.engine = s.buildRouter()
	return s
}

// Store exposes the backing store for seeding and assertions.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the http.Handler, for httptest.NewServer and the
// standalone command.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	results := router.Group("/api/v1/results")
	results.Use(requireCandidate(s.secret))
	{
		// POST /results/start shares the param slot with result IDs:
		// gin's route tree rejects a static sibling of :result_id.
		results.POST("/:result_id", s.postResults)
		results.PUT("/:result_id/answer", s.submitAnswer)
		results.POST("/:result_id/submit", s.submitExam)
		results.POST("/:result_id/auto-submit", s.submitExam)
		results.GET("/:result_id", s.getResult)
		results.GET("", s.listResults)
	}

	return router
}
