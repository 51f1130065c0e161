package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	applogger "CoinRadar/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue with delayed retries (sorted set) and a dead-letter list.
// Without registered jobs it only publishes.
type RedisQueue struct {
	log    *applogger.Logger
	cfg    Config
	client *redis.Client

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

var _ Publisher = (*RedisQueue)(nil)

func NewRedisQueue(l *applogger.Logger, client *redis.Client, opts ...Option) *RedisQueue {
	cfg := Config{
		Workers:     1,
		RetryLimit:  3,
		RetryDelay:  10 * time.Second,
		PollTimeout: time.Second,
		KeyPrefix:   "coinradar:queue",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisQueue{log: l, cfg: cfg, client: client, jobs: make(map[string]Job), now: time.Now}
}

// Register adds a job. It must be called before Start.
func (q *RedisQueue) Register(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.Type()]; ok {
		q.log.Warn("job already registered", applogger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

// Start pings Redis and, when jobs are registered, launches the workers and the retry mover.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = stop
	q.running = true

	if len(q.jobs) == 0 {
		q.log.Info("redis queue publishing", applogger.String("key", q.messagesKey()))
		return nil
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, i)
	}
	q.wg.Add(1)
	go q.retryMover(runCtx)

	q.log.Info("redis queue started",
		applogger.String("key", q.messagesKey()),
		applogger.Int("workers", q.cfg.Workers),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx ends.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes payload as a new message of msgType.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.messagesKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.cfg.PollTimeout, q.messagesKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.log.Error("brpop failed", applogger.Int("worker_id", id), applogger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		q.process(ctx, []byte(res[1]))
	}
}

func (q *RedisQueue) process(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		q.log.Error("undecodable queue message", applogger.Error(err))
		q.deadLetter(ctx, data)
		return
	}

	q.mu.RLock()
	job, ok := q.jobs[env.Type]
	q.mu.RUnlock()

	var err error
	if !ok {
		err = Permanent(fmt.Errorf("no job for type %q", env.Type))
	} else {
		err = q.handle(ctx, job, env)
	}
	if err != nil && ctx.Err() != nil {
		// shutting down; put it back for the next run
		q.requeue(data)
		return
	}

	switch decide(env, err, q.cfg.RetryLimit) {
	case outcomeDone:
	case outcomeRetry:
		env.Attempts++
		q.log.Warn("job failed, retry scheduled",
			applogger.String("id", env.ID),
			applogger.String("type", env.Type),
			applogger.Int("attempt", env.Attempts),
			applogger.Error(err),
		)
		q.scheduleRetry(ctx, env)
	case outcomeDead:
		q.log.Error("job dead-lettered",
			applogger.String("id", env.ID),
			applogger.String("type", env.Type),
			applogger.Error(err),
		)
		q.deadLetter(ctx, data)
	}
}

func (q *RedisQueue) handle(ctx context.Context, job Job, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job panic: %v", r))
		}
	}()
	return job.Handle(ctx, env.Payload)
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		q.log.Error("marshal retry", applogger.Error(err))
		return
	}
	at := q.now().Add(q.cfg.RetryDelay)
	if err := q.client.ZAdd(ctx, q.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		q.log.Error("zadd retry", applogger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(ctx context.Context, data []byte) {
	if err := q.client.LPush(ctx, q.deadKey(), data).Err(); err != nil {
		q.log.Error("lpush dead letter", applogger.Error(err))
	}
}

func (q *RedisQueue) requeue(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.client.RPush(ctx, q.messagesKey(), data).Err(); err != nil {
		q.log.Error("requeue failed", applogger.Error(err))
	}
}

// retryMover moves due retries back onto the message list.
func (q *RedisQueue) retryMover(ctx context.Context) {
	defer q.wg.Done()
	every := q.cfg.RetryDelay / 2
	if every < 100*time.Millisecond {
		every = 100 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.moveDue(ctx)
		}
	}
}

func (q *RedisQueue) moveDue(ctx context.Context) {
	due, err := q.client.ZRangeByScore(ctx, q.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			q.log.Error("fetch due retries", applogger.Error(err))
		}
		return
	}
	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.retryKey(), member)
		pipe.LPush(ctx, q.messagesKey(), member)
		if _, err := pipe.Exec(ctx); err != nil {
			if ctx.Err() == nil {
				q.log.Error("move retry", applogger.Error(err))
			}
			return
		}
	}
}

// Len reports the pending, delayed and dead-letter counts.
func (q *RedisQueue) Len(ctx context.Context) (pending, delayed, dead int64, err error) {
	pipe := q.client.Pipeline()
	p := pipe.LLen(ctx, q.messagesKey())
	d := pipe.ZCard(ctx, q.retryKey())
	x := pipe.LLen(ctx, q.deadKey())
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return p.Val(), d.Val(), x.Val(), nil
}

func (q *RedisQueue) messagesKey() string { return q.cfg.KeyPrefix + ":messages" }
func (q *RedisQueue) retryKey() string    { return q.cfg.KeyPrefix + ":retry" }
func (q *RedisQueue) deadKey() string     { return q.cfg.KeyPrefix + ":dlq" }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
