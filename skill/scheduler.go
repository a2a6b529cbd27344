package skill

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// Scheduler owns the timer-trigger state machine.
//
// Invariant: a trigger is enabled iff it has a bound queue job (timer
// triggers) or the enabled flag set (simple-event triggers, which have
// no schedule). Enable and disable on the same trigger are linearized
// through a per-trigger mutex, so concurrent flips cannot leave a
// dangling job or a bound-but-disabled row.
type Scheduler struct {
	store   *store.Store
	queue   *queue.Queue
	metrics *metrics.Collector
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScheduler creates a scheduler.
func NewScheduler(st *store.Store, q *queue.Queue, m *metrics.Collector, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   st,
		queue:   q,
		metrics: m,
		logger:  logger.With(zap.String("component", "scheduler")),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (sc *Scheduler) lockTrigger(uid, triggerID string) func() {
	key := uid + "/" + triggerID
	sc.mu.Lock()
	l, ok := sc.locks[key]
	if !ok {
		l = &sync.Mutex{}
		sc.locks[key] = l
	}
	sc.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Enable schedules a trigger. For timer triggers it enqueues a delayed
// (and possibly repeating) invoke job and binds its id; enabling an
// already-bound trigger is a no-op.
func (sc *Scheduler) Enable(ctx context.Context, uid, triggerID string) error {
	unlock := sc.lockTrigger(uid, triggerID)
	defer unlock()

	t, err := sc.store.GetTrigger(ctx, uid, triggerID)
	if err == store.ErrNotFound {
		return types.NewError(types.ErrTriggerNotFound, "trigger not found: "+triggerID).
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to load trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	if t.Type != types.TriggerTimer {
		// Simple-event triggers have nothing to schedule.
		return sc.store.BindTriggerJob(ctx, uid, triggerID, "", true)
	}
	if t.BoundJobID != "" {
		return nil
	}
	if t.Timer == nil || t.Timer.Datetime.IsZero() {
		return types.NewError(types.ErrParams, "timer trigger missing timer config").
			WithHTTPStatus(http.StatusBadRequest)
	}

	var repeat time.Duration
	if t.Timer.RepeatInterval != "" {
		period, ok := t.Timer.RepeatInterval.Period()
		if !ok {
			return types.NewError(types.ErrParams, "unknown repeat interval: "+string(t.Timer.RepeatInterval)).
				WithHTTPStatus(http.StatusBadRequest)
		}
		repeat = period
	}
	delay := time.Until(t.Timer.Datetime)
	if delay < 0 {
		delay = 0
	}

	payload := InvokeJobPayload{
		UID: uid,
		Request: &types.InvocationRequest{
			SkillName: t.SkillName,
			Input:     t.Input,
			Context:   t.Context,
			Config:    t.Config,
			TriggerID: triggerID,
		},
	}
	jobID, err := sc.queue.EnqueueDelayed(ctx, ChannelInvokeSkill, payload, delay, repeat)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to schedule trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	if err := sc.store.BindTriggerJob(ctx, uid, triggerID, jobID, true); err != nil {
		// Undo the schedule so no job runs for an unbound trigger.
		if rerr := sc.queue.Remove(ctx, ChannelInvokeSkill, jobID); rerr != nil {
			sc.logger.Error("failed to remove orphaned trigger job",
				zap.String("job_id", jobID), zap.Error(rerr))
		}
		return types.NewError(types.ErrInternalError, "failed to bind trigger job").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	sc.metrics.AddScheduledTriggers(1)
	sc.logger.Info("trigger scheduled",
		zap.String("trigger_id", triggerID),
		zap.String("job_id", jobID),
		zap.Duration("delay", delay),
		zap.Duration("repeat", repeat))
	return nil
}

// Disable unschedules a trigger. Disabling an unbound trigger only
// clears the enabled flag.
func (sc *Scheduler) Disable(ctx context.Context, uid, triggerID string) error {
	unlock := sc.lockTrigger(uid, triggerID)
	defer unlock()

	t, err := sc.store.GetTrigger(ctx, uid, triggerID)
	if err == store.ErrNotFound {
		return types.NewError(types.ErrTriggerNotFound, "trigger not found: "+triggerID).
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to load trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	if t.BoundJobID == "" {
		if t.Enabled {
			return sc.store.BindTriggerJob(ctx, uid, triggerID, "", false)
		}
		return nil
	}

	// Removal is idempotent; a job that already ran is simply gone.
	if err := sc.queue.Remove(ctx, ChannelInvokeSkill, t.BoundJobID); err != nil {
		return types.NewError(types.ErrInternalError, "failed to unschedule trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	if err := sc.store.BindTriggerJob(ctx, uid, triggerID, "", false); err != nil {
		return types.NewError(types.ErrInternalError, "failed to clear trigger job").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	sc.metrics.AddScheduledTriggers(-1)
	sc.logger.Info("trigger unscheduled", zap.String("trigger_id", triggerID))
	return nil
}
