// cmd/auditor drains the lobby event audit queue from Redis and persists it
// to Postgres. It runs as a separate process from cmd/server and is never
// imported by the lobby engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/audit"
	"github.com/holloway-dev/blankslate/internal/database"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	db, err := database.Connect(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	drainer := audit.NewDrainer(redisAddr, db, logger)
	go drainer.Run()

	logger.Info("blankslate-auditor started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	drainer.Stop()
	logger.Info("blankslate-auditor shutting down")
}
