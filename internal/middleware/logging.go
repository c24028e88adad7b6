package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": duration,
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a player joining a lobby over its WebSocket
// stream, once the join handshake has resolved who they are.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr, lobbyID, playerID string) {
	logger.WithFields(logrus.Fields{
		"remote":    remoteAddr,
		"lobby_id":  lobbyID,
		"player_id": playerID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a player's WebSocket stream closing, whether
// from a clean leave, a read error, or the handshake never completing (in
// which case playerID is empty).
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr, lobbyID, playerID string, err error) {
	fields := logrus.Fields{
		"remote":    remoteAddr,
		"lobby_id":  lobbyID,
		"player_id": playerID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
