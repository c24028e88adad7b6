// cmd/server runs the lobby/game WebSocket server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/audit"
	"github.com/holloway-dev/blankslate/internal/deck"
	"github.com/holloway-dev/blankslate/internal/handlers"
	"github.com/holloway-dev/blankslate/internal/lobby"
	"github.com/holloway-dev/blankslate/internal/middleware"
)

func main() {
	var (
		frontendOrigin = flag.String("f", "", "allowed frontend origin for CORS and WebSocket upgrades")
		cachePath      = flag.String("cache", "./deck-cache", "deck cache directory")
		certPath       = flag.String("cert", "", "TLS certificate PEM path")
		keyPath        = flag.String("key", "", "TLS key PEM path")
		auditRedisAddr = flag.String("audit-redis-addr", "", "Redis address for audit publishing (disabled if empty)")
		deckAPIBase    = flag.String("deck-api", "https://api.crcast.cc/v1/cc/decks", "base URL of the upstream deck API")
	)
	flag.Parse()

	host := "0.0.0.0:8080"
	if flag.NArg() > 0 {
		host = flag.Arg(0)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	pub, err := audit.NewPublisher(*auditRedisAddr, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect audit publisher")
	}

	store := lobby.NewStore(*cachePath, pub, logger)
	fetcher := deck.NewHTTPFetcher(*deckAPIBase)

	mux := http.NewServeMux()
	mux.HandleFunc("/lobby", handlers.CreateLobbyHandler(store, logger))
	mux.Handle("/ws/", middleware.LogMiddleware(logger)(
		handlers.LobbyWSHandler(store, fetcher, logger, *frontendOrigin),
	))

	janitorDone := make(chan struct{})
	go store.RunJanitor(janitorDone)

	srv := &http.Server{Addr: host, Handler: mux}

	go func() {
		var serveErr error
		if *certPath != "" && *keyPath != "" {
			logger.Infof("listening with TLS on %s", host)
			serveErr = srv.ListenAndServeTLS(*certPath, *keyPath)
		} else {
			logger.Infof("listening on %s", host)
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.WithError(serveErr).Fatal("server exited")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	close(janitorDone)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
