// Package queue implements the durable job channels the engine uses for
// invocation dispatch and usage reporting, on top of Redis.
//
// Layout per channel: a pending list (LPUSH/BRPOPLPUSH), a processing
// list holding jobs a worker has claimed but not yet acknowledged, a
// delayed sorted set scored by due time in unix milliseconds, and a
// claims sorted set scored by claim time. Job bodies live under their
// own keys so delayed and repeating jobs can be removed by id. Claims
// older than the stall timeout are swept back onto the pending list, so
// a worker that dies between claim and ack only delays its job.
// Delivery is at-least-once and unordered across jobs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const consumeBlockTimeout = time.Second

// defaultStallTimeout bounds how long a claimed job may sit unacked
// before the promoter hands it back to the pending list. Executions are
// expected to finish well inside it.
const defaultStallTimeout = 30 * time.Second

// ErrClosed is returned by Consume after the context is cancelled.
var ErrClosed = errors.New("queue consumer closed")

// Job is one durable queue entry.
type Job struct {
	ID          string          `json:"id"`
	Channel     string          `json:"channel"`
	Payload     json.RawMessage `json:"payload"`
	RepeatEvery time.Duration   `json:"repeatEvery,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
}

// Unmarshal decodes the job payload into dst.
func (j *Job) Unmarshal(dst any) error {
	return json.Unmarshal(j.Payload, dst)
}

// Queue wraps the Redis client.
type Queue struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// New creates a queue with the given key prefix.
func New(client *redis.Client, prefix string, logger *zap.Logger) *Queue {
	if prefix == "" {
		prefix = "skillstream:"
	}
	return &Queue{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "queue")),
	}
}

func (q *Queue) pendingKey(channel string) string    { return q.prefix + "queue:" + channel }
func (q *Queue) processingKey(channel string) string { return q.prefix + "queue:" + channel + ":working" }
func (q *Queue) delayedKey(channel string) string    { return q.prefix + "queue:" + channel + ":delayed" }
func (q *Queue) claimsKey(channel string) string     { return q.prefix + "queue:" + channel + ":claims" }
func (q *Queue) jobKey(id string) string             { return q.prefix + "job:" + id }

func (q *Queue) storeJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.Set(ctx, q.jobKey(job.ID), data, 0).Err()
}

func (q *Queue) loadJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// Enqueue adds a job for immediate consumption and returns its id.
func (q *Queue) Enqueue(ctx context.Context, channel string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	job := &Job{
		ID:         uuid.New().String(),
		Channel:    channel,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}
	if err := q.storeJob(ctx, job); err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, q.pendingKey(channel), job.ID).Err(); err != nil {
		return "", err
	}
	return job.ID, nil
}

// EnqueueDelayed schedules a job after the given delay. A non-zero
// repeatEvery re-schedules the job with the same id each time it is
// promoted, until it is removed.
func (q *Queue) EnqueueDelayed(ctx context.Context, channel string, payload any, delay, repeatEvery time.Duration) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	if delay < 0 {
		delay = 0
	}
	job := &Job{
		ID:          uuid.New().String(),
		Channel:     channel,
		Payload:     data,
		RepeatEvery: repeatEvery,
		EnqueuedAt:  time.Now(),
	}
	if err := q.storeJob(ctx, job); err != nil {
		return "", err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	err = q.client.ZAdd(ctx, q.delayedKey(channel), redis.Z{Score: due, Member: job.ID}).Err()
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Remove cancels a job wherever it currently sits. Missing jobs are not
// an error; removal is idempotent.
func (q *Queue) Remove(ctx context.Context, channel, jobID string) error {
	pipe := q.client.Pipeline()
	pipe.ZRem(ctx, q.delayedKey(channel), jobID)
	pipe.LRem(ctx, q.pendingKey(channel), 0, jobID)
	pipe.Del(ctx, q.jobKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// Consume blocks until a job is available on the channel. The job moves
// to the processing list and its claim time is recorded; both stay until
// Ack, and a worker must not acknowledge before execution finishes.
func (q *Queue) Consume(ctx context.Context, channel string) (*Job, error) {
	for {
		if ctx.Err() != nil {
			return nil, ErrClosed
		}
		id, err := q.client.BRPopLPush(ctx, q.pendingKey(channel), q.processingKey(channel), consumeBlockTimeout).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrClosed
			}
			return nil, err
		}
		q.client.ZAdd(ctx, q.claimsKey(channel), redis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: id,
		})

		job, err := q.loadJob(ctx, id)
		if err == redis.Nil {
			// Removed while pending; drop the claim.
			q.dropClaim(ctx, channel, id)
			continue
		}
		if err != nil {
			q.logger.Error("failed to load job body", zap.String("job_id", id), zap.Error(err))
			q.dropClaim(ctx, channel, id)
			continue
		}
		return job, nil
	}
}

func (q *Queue) dropClaim(ctx context.Context, channel, id string) {
	pipe := q.client.Pipeline()
	pipe.LRem(ctx, q.processingKey(channel), 1, id)
	pipe.ZRem(ctx, q.claimsKey(channel), id)
	pipe.Exec(ctx)
}

// Ack completes a consumed job. One-shot job bodies are deleted;
// repeating jobs keep their body for the next promotion.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	pipe := q.client.Pipeline()
	pipe.LRem(ctx, q.processingKey(job.Channel), 1, job.ID)
	pipe.ZRem(ctx, q.claimsKey(job.Channel), job.ID)
	if job.RepeatEvery == 0 {
		pipe.Del(ctx, q.jobKey(job.ID))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ReclaimStalled moves jobs claimed longer than olderThan ago from the
// processing list back onto the pending list. A job whose worker died
// before Ack is redelivered; consumers must tolerate that.
func (q *Queue) ReclaimStalled(ctx context.Context, channel string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	ids, err := q.client.ZRangeByScore(ctx, q.claimsKey(channel), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, id := range ids {
		removed, err := q.client.LRem(ctx, q.processingKey(channel), 1, id).Result()
		if err != nil {
			return reclaimed, err
		}
		q.client.ZRem(ctx, q.claimsKey(channel), id)
		if removed == 0 {
			// Acked in the meantime; the claim entry was just stale.
			continue
		}
		if err := q.client.LPush(ctx, q.pendingKey(channel), id).Err(); err != nil {
			return reclaimed, err
		}
		q.logger.Warn("reclaimed stalled job", zap.String("channel", channel), zap.String("job_id", id))
		reclaimed++
	}
	return reclaimed, nil
}

// PromoteDue moves delayed jobs whose due time has passed onto the
// pending list. Repeating jobs are re-scored one period ahead instead of
// being removed from the delayed set.
func (q *Queue) PromoteDue(ctx context.Context, channel string) (int, error) {
	now := time.Now().UnixMilli()
	ids, err := q.client.ZRangeByScore(ctx, q.delayedKey(channel), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range ids {
		job, err := q.loadJob(ctx, id)
		if err == redis.Nil {
			q.client.ZRem(ctx, q.delayedKey(channel), id)
			continue
		}
		if err != nil {
			q.logger.Error("failed to load delayed job", zap.String("job_id", id), zap.Error(err))
			continue
		}

		pipe := q.client.Pipeline()
		if job.RepeatEvery > 0 {
			next := float64(time.Now().Add(job.RepeatEvery).UnixMilli())
			pipe.ZAdd(ctx, q.delayedKey(channel), redis.Z{Score: next, Member: id})
		} else {
			pipe.ZRem(ctx, q.delayedKey(channel), id)
		}
		pipe.LPush(ctx, q.pendingKey(channel), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// StartPromoter runs the promotion and stalled-claim sweep loop for the
// given channels until the context is cancelled.
func (q *Queue) StartPromoter(ctx context.Context, interval time.Duration, channels ...string) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, ch := range channels {
					if _, err := q.PromoteDue(ctx, ch); err != nil && ctx.Err() == nil {
						q.logger.Error("promotion failed", zap.String("channel", ch), zap.Error(err))
					}
					if _, err := q.ReclaimStalled(ctx, ch, defaultStallTimeout); err != nil && ctx.Err() == nil {
						q.logger.Error("stalled-claim sweep failed", zap.String("channel", ch), zap.Error(err))
					}
				}
			}
		}
	}()
}

// Depth returns the number of pending jobs on a channel.
func (q *Queue) Depth(ctx context.Context, channel string) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey(channel)).Result()
}

// Scheduled reports whether a delayed job with the given id exists.
func (q *Queue) Scheduled(ctx context.Context, channel, jobID string) (bool, error) {
	err := q.client.ZScore(ctx, q.delayedKey(channel), jobID).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
