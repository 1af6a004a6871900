package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/middleware"
	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// AuthController handles first access, login and credential management.
type AuthController struct {
	svc      *usecase.Queridometro
	guard    *utils.LoginGuard
	tokenTTL time.Duration
	admins   map[string]struct{}
}

// NewAuthController creates a new controller instance.
func NewAuthController(svc *usecase.Queridometro, guard *utils.LoginGuard, tokenTTL time.Duration, admins []string) *AuthController {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		set[tally.FoldName(a)] = struct{}{}
	}
	return &AuthController{svc: svc, guard: guard, tokenTTL: tokenTTL, admins: set}
}

type credentialsRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Confirm  string `json:"confirm"`
}

// Login verifies name and password and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	name, ok := a.svc.Roster().Resolve(req.Name)
	if !ok {
		respondError(ctx, usecase.ErrNotOnRoster)
		return
	}
	// keyed by name and client so a stranger cannot lock a member out
	guardKey := name + "|" + ctx.ClientIP()
	if a.guard.Locked(ctx.Request.Context(), guardKey) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many failed attempts, try again later")
		return
	}

	user, err := a.svc.Login(ctx.Request.Context(), name, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredential) && a.guard.Fail(ctx.Request.Context(), guardKey) {
			utils.Sugar.Warnw("login locked", "name", name, "ip", ctx.ClientIP())
			utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many failed attempts, try again later")
			return
		}
		respondError(ctx, err)
		return
	}
	a.guard.Reset(ctx.Request.Context(), guardKey)
	a.issueToken(ctx, user)
}

// Register completes first access by setting a password, then logs the member in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if req.Confirm != "" && req.Confirm != req.Password {
		utils.Error(ctx, http.StatusBadRequest, 40002, "passwords do not match")
		return
	}

	user, err := a.svc.Register(ctx.Request.Context(), req.Name, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Sugar.Infow("first access completed", "name", user.Name)
	a.issueToken(ctx, user)
}

func (a *AuthController) issueToken(ctx *gin.Context, user *models.User) {
	token, expires, err := utils.GenerateToken(user.ID, user.Name, user.CredentialVersion, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": expires,
		"user":       a.userResponse(user.ID, user.Name),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, ok := ctx.Get(middleware.ContextClaimsKey)
	if token == "" || !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	expiresAt := time.Now().Add(a.tokenTTL)
	if c, ok := claims.(*utils.Claims); ok && c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's identity and today's voting state.
func (a *AuthController) Me(ctx *gin.Context) {
	name := middleware.CurrentName(ctx)
	sess, err := a.svc.Session(ctx.Request.Context(), name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	id, _ := ctx.Get(middleware.ContextUserIDKey)
	uid, _ := id.(uint)
	resp := a.userResponse(uid, name)
	resp["day"] = sess.Day
	resp["state"] = sess.State()
	resp["voted"] = sess.Voted
	utils.Success(ctx, resp)
}

// ChangePassword replaces the caller's password after checking the current one.
// Earlier tokens stop working, so a fresh one is returned.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	var req struct {
		Current  string `json:"current" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}
	user, err := a.svc.ChangePassword(ctx.Request.Context(), middleware.CurrentName(ctx), req.Current, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.issueToken(ctx, user)
}

// ResetPassword clears a member's password so they go through first access again.
func (a *AuthController) ResetPassword(ctx *gin.Context) {
	target := strings.TrimSpace(ctx.Param("name"))
	if err := a.svc.ResetPassword(ctx.Request.Context(), target); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Sugar.Infow("password reset", "target", target, "by", middleware.CurrentName(ctx))
	utils.Success(ctx, gin.H{"message": "password cleared"})
}

func (a *AuthController) userResponse(id uint, name string) gin.H {
	_, admin := a.admins[tally.FoldName(name)]
	return gin.H{
		"id":       id,
		"name":     name,
		"is_admin": admin,
	}
}
