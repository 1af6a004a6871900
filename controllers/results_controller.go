package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// ResultsController serves quorum-gated tallies and the day history.
type ResultsController struct {
	svc      *usecase.Queridometro
	cacheTTL time.Duration
}

func NewResultsController(svc *usecase.Queridometro, cacheTTL time.Duration) *ResultsController {
	return &ResultsController{svc: svc, cacheTTL: cacheTTL}
}

// Today returns the results for the current reference day.
func (r *ResultsController) Today(ctx *gin.Context) {
	r.respond(ctx, r.svc.Today())
}

// ByDay returns the results for the day in the path.
func (r *ResultsController) ByDay(ctx *gin.Context) {
	r.respond(ctx, strings.TrimSpace(ctx.Param("day")))
}

// respond serves one day's results. Only closed days go through the cache:
// today's quorum gate is evaluated on every request.
func (r *ResultsController) respond(ctx *gin.Context, day string) {
	closed := tally.ValidDay(day) && day < r.svc.Today()
	key := utils.ResultsCacheKey(day)
	if closed {
		var cached usecase.Results
		if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
			utils.Success(ctx, cached)
			return
		}
	}

	res, err := r.svc.Results(ctx.Request.Context(), day)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if closed {
		utils.CacheSetJSON(ctx.Request.Context(), key, res, r.cacheTTL)
	}
	utils.Success(ctx, res)
}

// History lists recent days with their voter counts.
func (r *ResultsController) History(ctx *gin.Context) {
	limit := 30
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	days, err := r.svc.History(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"quorum": r.svc.Quorum(),
		"items":  days,
	})
}
