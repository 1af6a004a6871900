package main

import (
	"context"
	"time"

	"github.com/cppla/queridometro/config"
	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/routes"
	"github.com/cppla/queridometro/store"
	"github.com/cppla/queridometro/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.Vote{})
	svc := routes.NewService(db, cfg)
	r := routes.SetupRouter(db, svc)

	ctx, cancel := context.WithCancel(context.Background())
	utils.StartRetentionCleaner(ctx, store.NewVoteStore(db), svc.Today, cfg.RetentionDays, time.Hour)

	utils.Sugar.Infof("Starting server on port %s (graceful), roster=%d quorum=%d", cfg.AppPort, svc.Roster().Len(), svc.Quorum())
	if err := utils.GraceServer(":"+cfg.AppPort, r, cancel, utils.CloseRedis); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
