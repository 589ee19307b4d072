package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/game"
	"github.com/suPer8Hu/dmbot/internal/httpapi/middleware"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
)

type Handler struct {
	Game    *game.Service
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

func NewHandler(svc *game.Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{Game: svc, Log: logging.OrNop(log), Metrics: m}
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"pong": true})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// reply writes r, choosing the status from err's class.
func reply(c *gin.Context, r game.Reply, err error) {
	switch {
	case err == nil:
		ok(c, r)
	case errors.Is(err, campaign.ErrValidation):
		fail(c, http.StatusBadRequest, 40001, r.Text)
	case errors.Is(err, campaign.ErrNotFound):
		fail(c, http.StatusNotFound, 40401, r.Text)
	case errors.Is(err, campaign.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, 50301, r.Text)
	default:
		fail(c, http.StatusInternalServerError, 50001, r.Text)
	}
}

func playerFromContext(c *gin.Context) (game.Player, bool) {
	id := c.GetString(middleware.PlayerIDKey)
	if id == "" {
		return game.Player{}, false
	}
	return game.Player{ID: id, DisplayName: c.GetString(middleware.PlayerNameKey)}, true
}
