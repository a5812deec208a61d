package main

import (
	"dcorpbot/ai"
	"dcorpbot/clock"
	"dcorpbot/config"
	"dcorpbot/database"
	"dcorpbot/handlers"
	"dcorpbot/ledger"
	"dcorpbot/logger"
	"dcorpbot/metrics"
	"dcorpbot/registry"
	"dcorpbot/scheduler"
	"dcorpbot/server"
	"dcorpbot/stats"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		metrics.Module,
		database.Module,
		registry.Module,
		ledger.Module,
		ai.Module,
		handlers.Module,
		stats.Module,
		scheduler.Module,
		server.Module,
	).Run()
}
