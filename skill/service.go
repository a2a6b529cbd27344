package skill

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/model"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// Queue channel names.
const (
	ChannelInvokeSkill = "invokeSkill"
	ChannelUsageReport = "usageReport"
)

// InvokeJobPayload is the body of a job on the invoke channel. ResultID
// is set when admission already created the record; trigger-originated
// jobs leave it empty and admission runs in the worker.
type InvokeJobPayload struct {
	UID      string                   `json:"uid"`
	ResultID string                   `json:"resultId,omitempty"`
	Request  *types.InvocationRequest `json:"request"`
}

// Service is the engine facade the HTTP layer and workers talk to.
type Service struct {
	store     *store.Store
	queue     *queue.Queue
	registry  *model.Registry
	quota     model.QuotaChecker
	inventory *Inventory
	resolver  *Resolver
	scheduler *Scheduler
	metrics   *metrics.Collector
	estimator Estimator
	logger    *zap.Logger
}

// Deps wires a service. Quota and Estimator default to AllowAll and the
// tiktoken estimator when nil.
type Deps struct {
	Store     *store.Store
	Queue     *queue.Queue
	Registry  *model.Registry
	Quota     model.QuotaChecker
	Inventory *Inventory
	Metrics   *metrics.Collector
	Estimator Estimator
	Logger    *zap.Logger
}

// NewService builds the engine facade.
func NewService(d Deps) *Service {
	if d.Quota == nil {
		d.Quota = model.AllowAll{}
	}
	if d.Estimator == nil {
		d.Estimator = NewTokenEstimator()
	}
	logger := d.Logger.With(zap.String("component", "skill"))
	s := &Service{
		store:     d.Store,
		queue:     d.Queue,
		registry:  d.Registry,
		quota:     d.Quota,
		inventory: d.Inventory,
		resolver:  NewResolver(d.Store, d.Logger),
		metrics:   d.Metrics,
		estimator: d.Estimator,
		logger:    logger,
	}
	s.scheduler = NewScheduler(d.Store, d.Queue, d.Metrics, d.Logger)
	return s
}

// Scheduler exposes the trigger scheduler.
func (s *Service) Scheduler() *Scheduler { return s.scheduler }

// ListSkills returns the installed skill inventory.
func (s *Service) ListSkills() []types.SkillMeta { return s.inventory.List() }

// Invoke admits a request and dispatches execution onto the durable
// queue. The returned record is in status executing; callers poll or
// list results for the terminal state.
func (s *Service) Invoke(ctx context.Context, user *types.User, req *types.InvocationRequest) (*types.ActionResult, error) {
	ad, err := s.Admit(ctx, user, req)
	if err != nil {
		return nil, err
	}
	payload := InvokeJobPayload{UID: user.UID, ResultID: ad.Result.ResultID, Request: ad.Request}
	if _, err := s.queue.Enqueue(ctx, ChannelInvokeSkill, payload); err != nil {
		// The record exists but nothing will execute it; fail it now so
		// it cannot sit in executing forever.
		ad.Result.Errors = append(ad.Result.Errors, types.NewError(types.ErrInternalError, "failed to dispatch invocation").Error())
		ad.Result.Status = types.StatusFailed
		if cerr := s.store.CommitResult(context.WithoutCancel(ctx), ad.Result); cerr != nil {
			s.logger.Error("failed to fail undispatched record",
				zap.String("result_id", ad.Result.ResultID), zap.Error(cerr))
		}
		return nil, types.NewError(types.ErrInternalError, "failed to dispatch invocation").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	return ad.Result, nil
}

// StreamInvoke admits a request and executes it inline, forwarding live
// frames to the sink. It returns once the record is terminal; admission
// failures surface as the error before any frame is sent.
func (s *Service) StreamInvoke(ctx context.Context, user *types.User, req *types.InvocationRequest, sink Sink) error {
	ad, err := s.Admit(ctx, user, req)
	if err != nil {
		return err
	}
	s.execute(ctx, ad, sink)
	return nil
}

// execute runs one admitted invocation to its terminal state: consume
// the capability's events, always emit the trailing usage frame, then
// commit exactly once. Capability panics are contained here.
func (s *Service) execute(ctx context.Context, ad *Admitted, sink Sink) *types.ActionResult {
	start := time.Now()
	agg := NewAggregator(ad.Result)

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("capability panicked",
					zap.String("skill", ad.Skill.Name()),
					zap.String("result_id", ad.Result.ResultID),
					zap.Any("panic", r))
				agg.AddError(types.NewError(types.ErrInternalError, "capability panicked").Error())
			}
		}()
		s.runEvents(ctx, ad, agg, sink)
	}()

	// The trailing usage frame is emitted on every terminal path.
	s.sendFrame(sink, &types.SkillEvent{
		Event:    types.EventUsage,
		ResultID: ad.Result.ResultID,
		Content:  types.UsageContent{Token: agg.Usage()},
	})

	// Commit must survive client-side cancellation.
	status, err := agg.Commit(context.WithoutCancel(ctx), s.store)
	if err != nil {
		s.logger.Error("failed to commit result",
			zap.String("result_id", ad.Result.ResultID), zap.Error(err))
	}
	s.metrics.RecordInvocation(ad.Skill.Name(), string(status), time.Since(start))
	return ad.Result
}

func (s *Service) sendFrame(sink Sink, ev *types.SkillEvent) {
	if err := sink.Send(ev); err != nil {
		s.logger.Debug("dropping frame, sink gone",
			zap.String("event", string(ev.Event)), zap.Error(err))
		return
	}
	s.metrics.RecordStreamEvent(string(ev.Event))
}

// =============================================================================
// Result queries
// =============================================================================

// GetResult returns one record, scoped to its owner.
func (s *Service) GetResult(ctx context.Context, user *types.User, resultID string) (*types.ActionResult, error) {
	res, err := s.store.GetResult(ctx, user.UID, resultID)
	if err == store.ErrNotFound {
		return nil, types.NewError(types.ErrResultNotFound, "result not found: "+resultID).
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load result").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	return res, nil
}

// ResultWithTrigger pairs a record with the trigger that produced it,
// when one did.
type ResultWithTrigger struct {
	Result  *types.ActionResult `json:"result"`
	Trigger *types.SkillTrigger `json:"trigger,omitempty"`
}

// ListResults returns records matching the filter, joined with their
// originating triggers.
func (s *Service) ListResults(ctx context.Context, user *types.User, filter store.ResultFilter) ([]*ResultWithTrigger, error) {
	results, err := s.store.ListResults(ctx, user.UID, filter)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list results").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	triggerIDs := make([]string, 0)
	for _, res := range results {
		if res.TriggerID != "" {
			triggerIDs = append(triggerIDs, res.TriggerID)
		}
	}
	triggers := map[string]*types.SkillTrigger{}
	if len(triggerIDs) > 0 {
		triggers, err = s.store.GetTriggersByIDs(ctx, user.UID, triggerIDs)
		if err != nil {
			s.logger.Warn("failed to join triggers onto results", zap.Error(err))
			triggers = map[string]*types.SkillTrigger{}
		}
	}

	out := make([]*ResultWithTrigger, 0, len(results))
	for _, res := range results {
		out = append(out, &ResultWithTrigger{Result: res, Trigger: triggers[res.TriggerID]})
	}
	return out, nil
}
