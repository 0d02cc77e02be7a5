package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const promoteBatchSize = 16

// claimScript pops one pending job and registers its visibility deadline in
// the same Redis call, so a crashed worker can never strand a job outside
// every index. KEYS[1] = pending list, KEYS[2] = active ZSET, ARGV[1] =
// visibility deadline.
var claimScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return id
`)

// moveScript transfers one job id from a ZSET index to the pending list
// atomically. Returns 0 when another caller already moved it.
var moveScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

// RedisOptions tune the durable queue behaviour.
type RedisOptions struct {
	// Prefix namespaces every key the queue touches.
	Prefix string
	// Visibility is how long a claimed job stays invisible before another
	// worker may reclaim it.
	Visibility time.Duration
	// MaxAttempts is applied to jobs enqueued without an explicit ceiling.
	MaxAttempts int
	// BackoffBase and BackoffMax bound the retry delay.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (o *RedisOptions) applyDefaults() {
	if o.Prefix == "" {
		o.Prefix = "oku:gradeq"
	}
	if o.Visibility <= 0 {
		o.Visibility = 2 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Minute
	}
}

// RedisQueue is the durable Queue implementation. Jobs live in a hash keyed
// by ID; a pending list, a delayed ZSET (score = ready-at) and an active ZSET
// (score = visibility deadline) index them by state.
type RedisQueue struct {
	rdb    *redis.Client
	opts   RedisOptions
	logger zerolog.Logger
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRedisQueue constructs a durable queue on top of the provided client.
func NewRedisQueue(rdb *redis.Client, opts RedisOptions, logger zerolog.Logger) *RedisQueue {
	opts.applyDefaults()

	return &RedisQueue{
		rdb:    rdb,
		opts:   opts,
		logger: logger.With().Str("component", "redis_queue").Logger(),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (q *RedisQueue) keyJobs() string    { return q.opts.Prefix + ":jobs" }
func (q *RedisQueue) keyPending() string { return q.opts.Prefix + ":pending" }
func (q *RedisQueue) keyDelayed() string { return q.opts.Prefix + ":delayed" }
func (q *RedisQueue) keyActive() string  { return q.opts.Prefix + ":active" }

// Enqueue appends a waiting job, scheduling it immediately unless the job
// carries a future ScheduledAt.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	now := q.now()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.opts.MaxAttempts
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	job.State = StateWaiting
	job.EnqueuedAt = now
	job.UpdatedAt = now

	if err := q.save(ctx, job); err != nil {
		return err
	}

	if job.ScheduledAt.After(now) {
		score := float64(job.ScheduledAt.Unix())
		if err := q.rdb.ZAdd(ctx, q.keyDelayed(), redis.Z{Score: score, Member: job.ID}).Err(); err != nil {
			return fmt.Errorf("schedule job: %w", err)
		}
		return nil
	}

	if err := q.rdb.RPush(ctx, q.keyPending(), job.ID).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.Debug().Str("job_id", job.ID).Uint("submission_id", job.SubmissionID).Msg("job enqueued")

	return nil
}

// Dequeue promotes due delayed jobs, reclaims expired active jobs, then
// claims one pending job. The claim moves the id from pending into the
// active ZSET in one scripted call: the job sits in exactly one index at
// every point, and a crash after the claim leaves it on the visibility
// clock for redelivery.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	if err := q.reclaimExpired(ctx); err != nil {
		return nil, err
	}

	now := q.now()
	deadline := now.Add(q.opts.Visibility).Unix()

	res, err := claimScript.Run(ctx, q.rdb, []string{q.keyPending(), q.keyActive()}, deadline).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	id, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("claim pending: unexpected reply %T", res)
	}

	job, err := q.load(ctx, id)
	if err != nil {
		return nil, err
	}

	job.Attempt++
	job.State = StateActive
	job.UpdatedAt = now
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// Ack marks the job completed, then drops it from the active index.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	job, err := q.load(ctx, jobID)
	if err != nil {
		return err
	}

	job.State = StateCompleted
	job.LastError = ""
	job.UpdatedAt = q.now()

	if err := q.save(ctx, job); err != nil {
		return err
	}

	if err := q.rdb.ZRem(ctx, q.keyActive(), jobID).Err(); err != nil {
		return fmt.Errorf("ack job: %w", err)
	}

	return nil
}

// Nack either reschedules with backoff or fails the job terminally. The
// active index entry is removed last: until then the job stays on the
// visibility clock, so no crash window can leave it unindexed.
func (q *RedisQueue) Nack(ctx context.Context, jobID string, cause error, retryable bool) error {
	job, err := q.load(ctx, jobID)
	if err != nil {
		return err
	}

	now := q.now()
	job.UpdatedAt = now
	if cause != nil {
		job.LastError = cause.Error()
	}

	if retryable && job.Attempt < job.MaxAttempts {
		delay := Backoff(q.opts.BackoffBase, q.opts.BackoffMax, job.Attempt, q.jitter())
		job.State = StateWaiting
		job.ScheduledAt = now.Add(delay)
		if err := q.save(ctx, job); err != nil {
			return err
		}

		score := float64(job.ScheduledAt.Unix())
		if err := q.rdb.ZAdd(ctx, q.keyDelayed(), redis.Z{Score: score, Member: job.ID}).Err(); err != nil {
			return fmt.Errorf("reschedule job: %w", err)
		}
		if err := q.rdb.ZRem(ctx, q.keyActive(), jobID).Err(); err != nil {
			return fmt.Errorf("nack job: %w", err)
		}

		q.logger.Info().
			Str("job_id", job.ID).
			Int("attempt", job.Attempt).
			Dur("delay", delay).
			Msg("job rescheduled")

		return nil
	}

	job.State = StateFailed
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if err := q.rdb.ZRem(ctx, q.keyActive(), jobID).Err(); err != nil {
		return fmt.Errorf("nack job: %w", err)
	}

	q.logger.Warn().
		Str("job_id", job.ID).
		Int("attempt", job.Attempt).
		Str("last_error", job.LastError).
		Msg("job failed terminally")

	return nil
}

// Get returns the stored job, mainly for operational inspection and tests.
func (q *RedisQueue) Get(ctx context.Context, jobID string) (*Job, error) {
	return q.load(ctx, jobID)
}

// Depth reports how many jobs are waiting (pending plus delayed).
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	pending, err := q.rdb.LLen(ctx, q.keyPending()).Result()
	if err != nil {
		return 0, err
	}

	delayed, err := q.rdb.ZCard(ctx, q.keyDelayed()).Result()
	if err != nil {
		return 0, err
	}

	return pending + delayed, nil
}

func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := fmt.Sprintf("%d", q.now().Unix())
	ids, err := q.rdb.ZRangeByScore(ctx, q.keyDelayed(), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed: %w", err)
	}

	for _, id := range ids {
		if err := moveScript.Run(ctx, q.rdb, []string{q.keyDelayed(), q.keyPending()}, id).Err(); err != nil {
			return err
		}
	}

	return nil
}

func (q *RedisQueue) reclaimExpired(ctx context.Context) error {
	now := fmt.Sprintf("%d", q.now().Unix())
	ids, err := q.rdb.ZRangeByScore(ctx, q.keyActive(), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan active: %w", err)
	}

	for _, id := range ids {
		job, err := q.load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				_ = q.rdb.ZRem(ctx, q.keyActive(), id).Err()
				continue
			}
			return err
		}

		if job.Attempt >= job.MaxAttempts {
			job.State = StateFailed
			if job.LastError == "" {
				job.LastError = "visibility timeout expired on final attempt"
			}
			job.UpdatedAt = q.now()
			if err := q.save(ctx, job); err != nil {
				return err
			}
			if err := q.rdb.ZRem(ctx, q.keyActive(), id).Err(); err != nil {
				return err
			}
			continue
		}

		// Save before moving: a crash in between leaves the job in the
		// active index where the next reclaim pass picks it up again.
		job.State = StateWaiting
		job.UpdatedAt = q.now()
		if err := q.save(ctx, job); err != nil {
			return err
		}

		moved, err := moveScript.Run(ctx, q.rdb, []string{q.keyActive(), q.keyPending()}, id).Int()
		if err != nil {
			return err
		}
		if moved == 0 {
			continue
		}

		q.logger.Warn().Str("job_id", id).Int("attempt", job.Attempt).Msg("reclaimed expired job")
	}

	return nil
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.rdb.HSet(ctx, q.keyJobs(), job.ID, payload).Err(); err != nil {
		return fmt.Errorf("store job: %w", err)
	}

	return nil
}

func (q *RedisQueue) load(ctx context.Context, jobID string) (*Job, error) {
	payload, err := q.rdb.HGet(ctx, q.keyJobs(), jobID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) jitter() *rand.Rand {
	q.mu.Lock()
	defer q.mu.Unlock()
	// rand.Rand is not safe for concurrent use; hand out a seeded child.
	return rand.New(rand.NewSource(q.rng.Int63()))
}
