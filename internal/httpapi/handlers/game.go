package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/dmbot/internal/game"
)

type createCampaignReq struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	p, okk := h.player(c, "newgame")
	if !okk {
		return
	}
	var req createCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 40001, "name is required")
		return
	}
	r, err := h.Game.NewCampaign(c.Request.Context(), p, req.Name)
	reply(c, r, err)
}

type joinCampaignReq struct {
	CharacterName string `json:"character_name"`
}

func (h *Handler) JoinCampaign(c *gin.Context) {
	p, okk := h.player(c, "join")
	if !okk {
		return
	}
	var req joinCampaignReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	r, err := h.Game.JoinCampaign(c.Request.Context(), p, c.Param("id"), req.CharacterName)
	reply(c, r, err)
}

func (h *Handler) ListCharacters(c *gin.Context) {
	if _, okk := h.player(c, "characters"); !okk {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, 40001, "invalid campaign id")
		return
	}
	r, err := h.Game.CampaignCharacters(c.Request.Context(), id)
	reply(c, r, err)
}

type narrateReq struct {
	Message string `json:"message" binding:"required"`
}

// Narrate runs a turn. A client that disconnects still gets the turn committed.
func (h *Handler) Narrate(c *gin.Context) {
	p, okk := h.player(c, "dm")
	if !okk {
		return
	}
	var req narrateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 40001, "message is required")
		return
	}
	r, err := h.Game.Speak(c.Request.Context(), p, req.Message)
	reply(c, r, err)
}

type rollReq struct {
	Expression string `json:"expression" binding:"required"`
}

func (h *Handler) Roll(c *gin.Context) {
	p, okk := h.player(c, "roll")
	if !okk {
		return
	}
	var req rollReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 40001, "expression is required")
		return
	}
	r, err := h.Game.Roll(c.Request.Context(), p, req.Expression)
	reply(c, r, err)
}

func (h *Handler) Status(c *gin.Context) {
	p, okk := h.player(c, "status")
	if !okk {
		return
	}
	r, err := h.Game.Status(c.Request.Context(), p)
	reply(c, r, err)
}

func (h *Handler) player(c *gin.Context, command string) (game.Player, bool) {
	p, okk := playerFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return game.Player{}, false
	}
	h.Metrics.Command(command, "http")
	return p, true
}
