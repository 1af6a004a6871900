package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/middleware"
	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// BallotController serves the daily ballot.
type BallotController struct {
	svc *usecase.Queridometro
}

func NewBallotController(svc *usecase.Queridometro) *BallotController {
	return &BallotController{svc: svc}
}

// Status tells the caller whether they already voted today and whom to vote on.
func (b *BallotController) Status(ctx *gin.Context) {
	name := middleware.CurrentName(ctx)
	sess, err := b.svc.Session(ctx.Request.Context(), name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	resp := gin.H{
		"voter": sess.Voter,
		"day":   sess.Day,
		"state": sess.State(),
		"voted": sess.Voted,
	}
	if !sess.Voted {
		resp["targets"] = b.svc.Roster().Others(name)
		resp["emojis"] = b.svc.Palette().Emojis()
	}
	utils.Success(ctx, resp)
}

// Submit stores a complete ballot: one emoji for every other roster member.
func (b *BallotController) Submit(ctx *gin.Context) {
	var req struct {
		Votes map[string]string `json:"votes" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	name := middleware.CurrentName(ctx)
	sess, err := b.svc.Session(ctx.Request.Context(), name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if err := b.svc.SubmitBallot(ctx.Request.Context(), sess, tally.Ballot(req.Votes)); err != nil {
		respondError(ctx, err)
		return
	}

	utils.Sugar.Infow("ballot submitted", "day", sess.Day, "lines", len(req.Votes))
	utils.Success(ctx, gin.H{
		"day":   sess.Day,
		"state": tally.Session{Voter: name, Day: sess.Day, Voted: true}.State(),
	})
}
