package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/dmbot/internal/game"
	"github.com/suPer8Hu/dmbot/internal/httpapi/handlers"
	"github.com/suPer8Hu/dmbot/internal/httpapi/middleware"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
)

type Deps struct {
	Game      *game.Service
	JWTSecret string
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := logging.OrNop(d.Logger)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	h := handlers.NewHandler(d.Game, log, d.Metrics)

	r.GET("/ping", h.Ping)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// game (JWT required, subject = player id)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(d.JWTSecret))
	authGroup.POST("/campaigns", h.CreateCampaign)
	authGroup.POST("/campaigns/:id/join", h.JoinCampaign)
	authGroup.GET("/campaigns/:id/characters", h.ListCharacters)
	authGroup.POST("/narrate", h.Narrate)
	authGroup.POST("/rolls", h.Roll)
	authGroup.GET("/status", h.Status)
	return r
}
