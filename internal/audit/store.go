package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Drainer pops Records from the Redis queue a Publisher writes to and
// persists them to Postgres in batches. It runs as the standalone
// cmd/auditor process, never inside the lobby engine.
type Drainer struct {
	rdb   *redis.Client
	db    *pgxpool.Pool
	log   *logrus.Logger
	queue string

	batchSize  int
	flushDelay time.Duration

	batchMu sync.Mutex
	batch   []Record

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDrainer wires a Drainer to the Redis server at redisAddr, taking the
// rest from environment-driven defaults, matching the historian pattern:
// AUDIT_QUEUE_NAME, AUDIT_BATCH_SIZE, AUDIT_FLUSH_MS.
func NewDrainer(redisAddr string, db *pgxpool.Pool, log *logrus.Logger) *Drainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Drainer{
		rdb:        redis.NewClient(&redis.Options{Addr: redisAddr}),
		db:         db,
		log:        log,
		queue:      getEnv("AUDIT_QUEUE_NAME", DefaultQueueName),
		batchSize:  getEnvInt("AUDIT_BATCH_SIZE", 20),
		flushDelay: time.Duration(getEnvInt("AUDIT_FLUSH_MS", 500)) * time.Millisecond,
		batch:      make([]Record, 0, 20),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run blocks, draining the queue and periodically flushing, until Stop is
// called.
func (d *Drainer) Run() {
	ticker := time.NewTicker(d.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.flush()
			return
		case <-ticker.C:
			d.flush()
		default:
			res, err := d.rdb.BLPop(d.ctx, 3*time.Second, d.queue).Result()
			if err != nil && !errors.Is(err, redis.Nil) && d.ctx.Err() == nil {
				d.log.WithError(err).Warn("audit drainer: BLPop failed")
				continue
			}
			if len(res) < 2 {
				continue
			}

			var rec Record
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				d.log.WithError(err).Warn("audit drainer: invalid record")
				continue
			}
			d.append(rec)
		}
	}
}

// Stop signals Run to flush and exit.
func (d *Drainer) Stop() {
	d.cancel()
}

func (d *Drainer) append(rec Record) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()

	d.batch = append(d.batch, rec)
	if len(d.batch) >= d.batchSize {
		d.flushLocked()
	}
}

func (d *Drainer) flush() {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	d.flushLocked()
}

func (d *Drainer) flushLocked() {
	if len(d.batch) == 0 {
		return
	}
	batch := make([]Record, len(d.batch))
	copy(batch, d.batch)
	d.batch = d.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			if _, err := tx.Exec(ctx, `
				INSERT INTO lobby_events (lobby_id, round, phase, event_type, emitted_at)
				VALUES ($1, $2, $3, $4, to_timestamp($5))
			`, rec.LobbyID, rec.Round, rec.Phase, rec.EventType, rec.EmittedAt); err != nil {
				return fmt.Errorf("insert lobby_event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		d.log.WithError(err).Warn("audit drainer: flush failed")
		return
	}
	d.log.WithField("count", len(batch)).Info("audit drainer: flushed batch")
}

func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, f func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback: %v; original: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
