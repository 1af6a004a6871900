package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/config"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// ConfigController serves the voting setup the UI needs to render a ballot.
type ConfigController struct {
	svc *usecase.Queridometro
}

func NewConfigController(svc *usecase.Queridometro) *ConfigController {
	return &ConfigController{svc: svc}
}

// GetConfig returns roster, palette, quorum, today's key and the notice bar.
func (c *ConfigController) GetConfig(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"roster": c.svc.Roster().Names(),
		"emojis": c.svc.Palette().Emojis(),
		"quorum": c.svc.Quorum(),
		"today":  c.svc.Today(),
		"notice": gin.H{
			"title": cfg.NoticeTitle,
			"html":  utils.Sanitize(cfg.NoticeHTML),
		},
	})
}
