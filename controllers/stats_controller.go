package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/store"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// StatsController provides aggregate counters. No per-voter data leaves here.
type StatsController struct {
	svc   *usecase.Queridometro
	users *store.UserStore
	votes *store.VoteStore
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(svc *usecase.Queridometro, users *store.UserStore, votes *store.VoteStore) *StatsController {
	return &StatsController{svc: svc, users: users, votes: votes}
}

// GetStats returns registered members, today's voter count and stored lines.
func (s *StatsController) GetStats(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()

	userCount, err := s.users.CountUsers(reqCtx)
	if err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	voteCount, err := s.votes.CountVotes(reqCtx)
	if err != nil {
		voteCount = 0
	}

	todayVoters := 0
	if res, err := s.svc.Results(reqCtx, s.svc.Today()); err == nil {
		todayVoters = res.VoterCount
	}

	utils.Success(ctx, gin.H{
		"roster_size":      s.svc.Roster().Len(),
		"registered_users": userCount,
		"today":            s.svc.Today(),
		"today_voters":     todayVoters,
		"quorum":           s.svc.Quorum(),
		"vote_lines":       voteCount,
	})
}
