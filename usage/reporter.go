// Package usage drains the token-usage reporting channel into the
// accounting ledger. Accounting is asynchronous and fire-and-forget
// relative to the invocations that produced it: a failure here is
// logged and the job dropped, never surfaced to the caller.
package usage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/skill"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// Reporter consumes usage-report jobs and writes ledger rows.
type Reporter struct {
	store   *store.Store
	queue   *queue.Queue
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewReporter creates a reporter.
func NewReporter(st *store.Store, q *queue.Queue, m *metrics.Collector, logger *zap.Logger) *Reporter {
	return &Reporter{
		store:   st,
		queue:   q,
		metrics: m,
		logger:  logger.With(zap.String("component", "usage")),
	}
}

// Start runs the consume loop until the context is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Reporter) loop(ctx context.Context) {
	r.logger.Info("usage reporter started")
	for {
		job, err := r.queue.Consume(ctx, skill.ChannelUsageReport)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				r.logger.Info("usage reporter stopped")
				return
			}
			r.logger.Error("consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		r.handleJob(ctx, job)

		if err := r.queue.Ack(context.WithoutCancel(ctx), job); err != nil {
			r.logger.Error("failed to ack usage job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// handleJob writes one ledger row. Malformed or unpersistable jobs are
// dropped with a log line.
func (r *Reporter) handleJob(ctx context.Context, job *queue.Job) {
	var report types.UsageReportJob
	if err := job.Unmarshal(&report); err != nil {
		r.logger.Error("dropping malformed usage job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	if err := r.store.CreateUsageRecords(ctx, []*types.UsageReportJob{&report}); err != nil {
		r.logger.Error("failed to persist usage record",
			zap.String("result_id", report.ResultID), zap.Error(err))
		return
	}
	r.metrics.RecordTokens(report.Item.Tier, report.Item.InputTokens, report.Item.OutputTokens)
}
