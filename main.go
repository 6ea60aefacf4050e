package main

import (
	"context"
	"time"

	"github.com/stridehq/stride/channel"
	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/routes"
	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Organization{},
		&models.Project{},
		&models.ProjectMember{},
		&models.DayTemplate{},
		&models.CompletionRecord{},
		&models.RankingAggregate{},
		&models.DispatchTask{},
		&models.DispatchLog{},
	)

	policy := services.PolicyFromConfig(cfg)
	ranking := services.NewRankingService(db)
	ledger := services.NewLedgerService(db, ranking, policy)
	webhook := services.NewWebhookService(db, ledger)

	sender := channel.NewWebhookSender(cfg)
	dispatcher := services.NewDispatcher(db, sender)
	dispatcher.Start(context.Background())

	// Best-effort retention for append-only dispatch logs
	utils.StartDispatchLogCleaner(db, time.Hour)

	r := routes.SetupRouter(db, ledger, ranking, dispatcher, webhook)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
