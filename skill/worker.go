package skill

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// StartWorkers launches n worker slots consuming the invoke channel.
// Each slot runs one job at a time and acknowledges only after
// execution returns; a job whose worker died before acking is
// redelivered by the queue's stalled-claim sweep.
func (s *Service) StartWorkers(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		go s.workerLoop(ctx, i)
	}
}

func (s *Service) workerLoop(ctx context.Context, slot int) {
	logger := s.logger.With(zap.Int("worker", slot))
	logger.Info("worker started")
	for {
		job, err := s.queue.Consume(ctx, ChannelInvokeSkill)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				logger.Info("worker stopped")
				return
			}
			logger.Error("consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		s.handleInvokeJob(ctx, logger, job)

		if err := s.queue.Ack(context.WithoutCancel(ctx), job); err != nil {
			logger.Error("failed to ack job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// handleInvokeJob executes one dequeued invocation. Bad payloads and
// unknown users fail soft: logged and dropped, never crashing the slot.
func (s *Service) handleInvokeJob(ctx context.Context, logger *zap.Logger, job *queue.Job) {
	var payload InvokeJobPayload
	if err := job.Unmarshal(&payload); err != nil {
		logger.Error("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if payload.Request == nil {
		logger.Error("dropping job without request", zap.String("job_id", job.ID))
		return
	}

	user, err := s.store.GetUser(ctx, payload.UID)
	if err != nil {
		logger.Warn("dropping job for unknown user",
			zap.String("job_id", job.ID), zap.String("uid", payload.UID), zap.Error(err))
		return
	}

	if payload.ResultID != "" {
		res, err := s.store.GetResult(ctx, payload.UID, payload.ResultID)
		if err == nil {
			if res.Status.Terminal() {
				// At-least-once delivery: a redelivered job whose record
				// already committed is a no-op.
				logger.Info("skipping redelivered job, result already terminal",
					zap.String("result_id", res.ResultID))
				return
			}
			ad, err := s.prepare(ctx, user, payload.Request, res)
			if err != nil {
				logger.Error("failed to prepare dispatched invocation",
					zap.String("result_id", res.ResultID), zap.Error(err))
				res.Errors = append(res.Errors, err.Error())
				res.Status = types.StatusFailed
				if cerr := s.store.CommitResult(ctx, res); cerr != nil {
					logger.Error("failed to commit preparation failure", zap.Error(cerr))
				}
				return
			}
			s.execute(ctx, ad, DiscardSink{})
			return
		}
		if err != store.ErrNotFound {
			logger.Error("failed to load dispatched record",
				zap.String("result_id", payload.ResultID), zap.Error(err))
			return
		}
		// Record missing: fall through to full admission below.
	}

	// Trigger-originated jobs carry no record yet; run the full
	// admission pipeline here.
	ad, err := s.Admit(ctx, user, payload.Request)
	if err != nil {
		logger.Warn("scheduled invocation rejected at admission",
			zap.String("uid", payload.UID), zap.Error(err))
		return
	}
	s.execute(ctx, ad, DiscardSink{})
}
