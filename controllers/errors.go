package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// respondError maps workflow errors onto the JSON envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrIncompleteBallot):
		var detail *tally.IncompleteBallotError
		if errors.As(err, &detail) {
			utils.Respond(ctx, http.StatusBadRequest, 40020, "incomplete ballot", detail)
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40020, "incomplete ballot")
	case errors.Is(err, usecase.ErrAlreadyVoted):
		utils.Error(ctx, http.StatusConflict, 40930, "already voted today")
	case errors.Is(err, usecase.ErrInvalidDay):
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid day, expected YYYY-MM-DD")
	case errors.Is(err, usecase.ErrWeakPassword):
		utils.Error(ctx, http.StatusBadRequest, 40002, "password too short")
	case errors.Is(err, usecase.ErrInvalidCredential):
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid name or password")
	case errors.Is(err, usecase.ErrNotOnRoster):
		utils.Error(ctx, http.StatusNotFound, 40410, "name is not on the roster")
	case errors.Is(err, usecase.ErrNeedsRegistration):
		utils.Respond(ctx, http.StatusNotFound, 40411, "first access: set a password", gin.H{"needs_registration": true})
	case errors.Is(err, usecase.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
	case errors.Is(err, usecase.ErrAlreadyRegistered):
		utils.Error(ctx, http.StatusConflict, 40901, "password already set")
	case errors.Is(err, usecase.ErrPersistence):
		utils.Sugar.Errorw("persistence failure", "path", ctx.FullPath(), "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "could not save or load votes, please retry")
	default:
		utils.Sugar.Errorw("unexpected error", "path", ctx.FullPath(), "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}
