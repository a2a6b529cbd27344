package skill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/types"
)

// Sink receives live frames during execution. The SSE writer implements
// it for streaming clients; queued executions use DiscardSink.
type Sink interface {
	Send(ev *types.SkillEvent) error
}

// DiscardSink drops every frame. Aggregation still happens; only the
// live forwarding is absent.
type DiscardSink struct{}

func (DiscardSink) Send(*types.SkillEvent) error { return nil }

// runEvents consumes the capability's execution events and its side
// channel until both are exhausted or the invocation aborts.
//
// Cancellation is cooperative: the context is checked once per event,
// so the current event always finishes processing. On abort the usage
// recorded so far stays, an ABORTED error is appended, and no further
// events are consumed.
func (s *Service) runEvents(ctx context.Context, ad *Admitted, agg *Aggregator, sink Sink) {
	emitter := NewEmitter(ad.Result.ResultID)
	cfg := &InvokeConfig{
		User: ad.User,
		Meta: types.SkillMeta{
			Name:        ad.Skill.Name(),
			Description: ad.Skill.Description(),
		},
		ModelName: ad.Result.ModelName,
		Context:   ad.Context,
		History:   ad.History,
		Config:    ad.Request.Config,
		Emitter:   emitter,
	}

	events, err := ad.Skill.Invoke(ctx, ad.Request.Input, cfg)
	if err != nil {
		agg.AddError(err.Error())
		s.sendFrame(sink, &types.SkillEvent{
			Event:    types.EventError,
			ResultID: ad.Result.ResultID,
			Content:  err.Error(),
		})
		emitter.Close()
		return
	}

	execCh := events
	sideCh := emitter.Events()
	for execCh != nil || sideCh != nil {
		if ctx.Err() != nil {
			agg.AddError(types.NewError(types.ErrAborted, "execution aborted").Error())
			return
		}
		select {
		case ev, ok := <-execCh:
			if !ok {
				// The capability is done; close the side channel and
				// drain whatever it still holds.
				execCh = nil
				emitter.Close()
				continue
			}
			s.handleExecEvent(ctx, ad, agg, sink, ev)
		case se, ok := <-sideCh:
			if !ok {
				sideCh = nil
				continue
			}
			s.handleSideEvent(agg, sink, se)
		case <-ctx.Done():
			// Re-enter the loop so the abort check above runs.
		}
	}
}

// handleExecEvent classifies one low-level event. Empty and
// tool-call-only chunks are discarded; content chunks are forwarded but
// never retained; model-end events carry the durable payload.
func (s *Service) handleExecEvent(ctx context.Context, ad *Admitted, agg *Aggregator, sink Sink, ev types.ExecutionEvent) {
	switch ev.Type {
	case types.ExecChunk:
		if ev.ToolCallChunk || ev.Content == "" {
			return
		}
		s.sendFrame(sink, &types.SkillEvent{
			Event:    types.EventStream,
			ResultID: ad.Result.ResultID,
			Content:  ev.Content,
		})
	case types.ExecEnd:
		if ev.Content != "" {
			agg.AppendContent(ev.Content)
		}
		agg.AddToolCalls(ev.ToolCalls)

		item := s.buildUsageItem(ad, ev)
		agg.AddUsage(item)
		s.reportUsage(ctx, ad, item)
	}
}

func (s *Service) handleSideEvent(agg *Aggregator, sink Sink, se types.SkillEvent) {
	switch se.Event {
	case types.EventLog:
		if msg, ok := se.Content.(string); ok {
			agg.AddLog(msg)
		}
	case types.EventStructuredData:
		agg.AddStructuredData(se.StructuredDataKey, se.Content)
	case types.EventError:
		if msg, ok := se.Content.(string); ok {
			agg.AddError(msg)
		}
	}
	s.sendFrame(sink, &se)
}

// buildUsageItem derives the usage item for one model-end event,
// estimating token counts when the provider reported none.
func (s *Service) buildUsageItem(ad *Admitted, ev types.ExecutionEvent) types.TokenUsageItem {
	modelName := ev.Model
	if modelName == "" {
		modelName = ad.Result.ModelName
	}
	info, ok := s.registry.Lookup(modelName)
	if !ok {
		s.logger.Warn("usage for unregistered model, tier falls back",
			zap.String("model", modelName),
			zap.String("result_id", ad.Result.ResultID))
	}

	item := types.TokenUsageItem{
		Tier:      s.registry.TierOf(modelName),
		Provider:  info.Provider,
		ModelName: modelName,
	}
	if ev.Usage != nil {
		item.InputTokens = ev.Usage.InputTokens
		item.OutputTokens = ev.Usage.OutputTokens
	} else {
		item.InputTokens = s.estimator.Estimate(ad.Request.Input.Query)
		item.OutputTokens = s.estimator.Estimate(ev.Content)
	}
	return item
}

// reportUsage dispatches one usage item onto the accounting channel.
// Fire-and-forget: enqueue failures are logged and never affect the
// invocation.
func (s *Service) reportUsage(ctx context.Context, ad *Admitted, item types.TokenUsageItem) {
	job := types.UsageReportJob{
		UID:      ad.User.UID,
		ResultID: ad.Result.ResultID,
		Meta: types.ActionMeta{
			SkillName: ad.Skill.Name(),
			ModelName: item.ModelName,
			Type:      types.ResultTypeSkill,
		},
		Item:      item,
		Timestamp: time.Now(),
	}
	// Outstanding usage must be recorded even when the invocation was
	// just aborted.
	if _, err := s.queue.Enqueue(context.WithoutCancel(ctx), ChannelUsageReport, job); err != nil {
		s.logger.Warn("failed to enqueue usage report",
			zap.String("result_id", ad.Result.ResultID), zap.Error(err))
	}
}
