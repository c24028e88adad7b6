// Package audit publishes a best-effort, operator-facing trail of lobby
// events to Redis. It is never read by the lobby engine and a failure to
// publish never affects a controller operation's outcome.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list lobby events are pushed onto.
const DefaultQueueName = "blankslate_lobby_events"

// Record is one audit line: a single broadcast ServerEvent observed by the
// controller, along with the round/phase it happened in.
type Record struct {
	LobbyID   uuid.UUID `json:"lobby_id"`
	Round     int       `json:"round"`
	Phase     string    `json:"phase"`
	EventType string    `json:"event_type"`
	EmittedAt int64     `json:"emitted_at"`
}

// Publisher pushes Records onto a Redis list. A nil *Publisher is valid and
// Publish on it is a no-op, so lobbies created without audit configured
// never need a nil check at the call site.
type Publisher struct {
	rdb       *redis.Client
	queueName string
	log       *logrus.Logger
}

// NewPublisher connects to Redis at addr. If addr is empty, NewPublisher
// returns nil, nil — audit publishing is disabled.
func NewPublisher(addr string, log *logrus.Logger) (*Publisher, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	queue := getEnv("AUDIT_QUEUE_NAME", DefaultQueueName)
	return &Publisher{rdb: rdb, queueName: queue, log: log}, nil
}

// Publish enqueues rec. Errors are logged and swallowed; Publish never
// returns an error because callers must never let audit failures affect a
// controller operation's result.
func (p *Publisher) Publish(rec Record) {
	if p == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		if p.log != nil {
			p.log.WithError(err).Warn("audit: marshal record failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.RPush(ctx, p.queueName, data).Err(); err != nil {
		if p.log != nil {
			p.log.WithError(err).Warn("audit: publish failed")
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
