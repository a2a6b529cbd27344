package skill

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/model"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

var metricsNamespaceSeq uint64

func nextMetricsNamespace() string {
	return fmt.Sprintf("skilltest_%d", atomic.AddUint64(&metricsNamespaceSeq, 1))
}

// scriptedSkill replays a fixed event sequence.
type scriptedSkill struct {
	name      string
	events    []types.ExecutionEvent
	invokeErr error
	panics    bool
	onInvoke  func(cfg *InvokeConfig)
}

func (s *scriptedSkill) Name() string {
	if s.name == "" {
		return "scripted"
	}
	return s.name
}

func (s *scriptedSkill) Description() string { return "scripted test capability" }

func (s *scriptedSkill) Invoke(ctx context.Context, _ *types.SkillInput, cfg *InvokeConfig) (<-chan types.ExecutionEvent, error) {
	if s.invokeErr != nil {
		return nil, s.invokeErr
	}
	if s.panics {
		panic("scripted panic")
	}
	if s.onInvoke != nil {
		s.onInvoke(cfg)
	}
	ch := make(chan types.ExecutionEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			if !send(ctx, ch, ev) {
				return
			}
		}
	}()
	return ch, nil
}

// captureSink records every frame; onSend can react mid-stream.
type captureSink struct {
	mu     sync.Mutex
	frames []*types.SkillEvent
	onSend func(ev *types.SkillEvent)
}

func (c *captureSink) Send(ev *types.SkillEvent) error {
	c.mu.Lock()
	c.frames = append(c.frames, ev)
	cb := c.onSend
	c.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
	return nil
}

func (c *captureSink) byType(t types.SkillEventType) []*types.SkillEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*types.SkillEvent
	for _, ev := range c.frames {
		if ev.Event == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *captureSink) last() *types.SkillEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// wordEstimator makes estimated token counts predictable in tests.
type wordEstimator struct{}

func (wordEstimator) Estimate(text string) int { return len(strings.Fields(text)) }

type denyAllQuota struct{}

func (denyAllQuota) Allow(context.Context, string, string) bool { return false }

type testEnv struct {
	svc   *Service
	store *store.Store
	queue *queue.Queue
	user  *types.User
}

func newTestEnv(t *testing.T, skills ...Skill) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db, zap.NewNop())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.New(client, "test:", zap.NewNop())

	registry := model.NewRegistry("gpt-4o", []model.Info{
		{Name: "gpt-4o", Provider: "openai", Tier: "t1", ContextWindow: 128000},
		{Name: "gpt-4o-mini", Provider: "openai", Tier: "t2", ContextWindow: 128000},
	})

	if len(skills) == 0 {
		skills = []Skill{NewCommonQnA()}
	}
	svc := NewService(Deps{
		Store:     st,
		Queue:     q,
		Registry:  registry,
		Inventory: NewInventory("", skills...),
		Metrics:   metrics.NewCollector(nextMetricsNamespace(), zap.NewNop()),
		Estimator: wordEstimator{},
		Logger:    zap.NewNop(),
	})

	user := &types.User{UID: "u1", Name: "alice", Locale: "en"}
	require.NoError(t, st.CreateUser(context.Background(), user))

	return &testEnv{svc: svc, store: st, queue: q, user: user}
}

func TestStreamInvoke_HappyPath(t *testing.T) {
	sk := &scriptedSkill{events: []types.ExecutionEvent{
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "Hel"},
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "lo"},
		{Type: types.ExecEnd, Model: "gpt-4o", Content: "Hello",
			Usage: &types.CallUsage{InputTokens: 10, OutputTokens: 2}},
	}}
	env := newTestEnv(t, sk)
	ctx := context.Background()
	sink := &captureSink{}

	err := env.svc.StreamInvoke(ctx, env.user, &types.InvocationRequest{
		SkillName: "scripted",
		Input:     &types.SkillInput{Query: "greet me"},
	}, sink)
	require.NoError(t, err)

	streams := sink.byType(types.EventStream)
	require.Len(t, streams, 2)
	assert.Equal(t, "Hel", streams[0].Content)
	assert.Equal(t, "lo", streams[1].Content)

	// The usage frame is the last frame on every terminal path.
	last := sink.last()
	require.NotNil(t, last)
	assert.Equal(t, types.EventUsage, last.Event)
	assert.Equal(t, types.UsageContent{Token: types.TokenUsage{
		InputTokens: 10, OutputTokens: 2, TotalTokens: 12,
	}}, last.Content)

	results, err := env.svc.ListResults(ctx, env.user, store.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0].Result
	assert.Equal(t, types.StatusFinish, res.Status)
	assert.Equal(t, "Hello", res.Content)
	assert.Empty(t, res.Errors)
	assert.Equal(t, types.TokenUsage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12}, res.TokenUsage)

	// One usage report was dispatched onto the accounting channel.
	depth, err := env.queue.Depth(ctx, ChannelUsageReport)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestStreamInvoke_AbortAfterFirstChunk(t *testing.T) {
	sk := &scriptedSkill{events: []types.ExecutionEvent{
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "Hel"},
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "lo"},
		{Type: types.ExecEnd, Model: "gpt-4o", Content: "Hello",
			Usage: &types.CallUsage{InputTokens: 10, OutputTokens: 2}},
	}}
	env := newTestEnv(t, sk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &captureSink{}
	sink.onSend = func(ev *types.SkillEvent) {
		if ev.Event == types.EventStream {
			cancel()
		}
	}

	err := env.svc.StreamInvoke(ctx, env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-abort",
		Input:     &types.SkillInput{Query: "greet me"},
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-abort")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	// Chunks are forwarded, never retained: no model-end ran, so the
	// aborted record has no content.
	assert.Empty(t, res.Content)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], string(types.ErrAborted))

	// Trailing usage frame still arrives, with whatever was recorded.
	last := sink.last()
	require.NotNil(t, last)
	assert.Equal(t, types.EventUsage, last.Event)
}

func TestStreamInvoke_CapabilityError(t *testing.T) {
	sk := &scriptedSkill{invokeErr: fmt.Errorf("provider unreachable")}
	env := newTestEnv(t, sk)
	sink := &captureSink{}

	err := env.svc.StreamInvoke(context.Background(), env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-err",
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-err")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "provider unreachable")

	assert.Equal(t, types.EventUsage, sink.last().Event)
}

func TestStreamInvoke_CapabilityPanicContained(t *testing.T) {
	sk := &scriptedSkill{panics: true}
	env := newTestEnv(t, sk)
	sink := &captureSink{}

	err := env.svc.StreamInvoke(context.Background(), env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-panic",
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-panic")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, res.Status)
	require.NotEmpty(t, res.Errors)
}

func TestStreamInvoke_SideEventsAggregated(t *testing.T) {
	sk := &scriptedSkill{
		onInvoke: func(cfg *InvokeConfig) {
			cfg.Emitter.EmitLog("selecting sources")
			cfg.Emitter.EmitStructuredData("sources", []any{"doc-1"})
		},
		events: []types.ExecutionEvent{
			{Type: types.ExecEnd, Model: "gpt-4o", Content: "done",
				Usage: &types.CallUsage{InputTokens: 1, OutputTokens: 1}},
		},
	}
	env := newTestEnv(t, sk)
	sink := &captureSink{}

	err := env.svc.StreamInvoke(context.Background(), env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-side",
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-side")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinish, res.Status)
	assert.Equal(t, []string{"selecting sources"}, res.Logs)
	require.Contains(t, res.StructuredData, "sources")

	assert.Len(t, sink.byType(types.EventLog), 1)
	assert.Len(t, sink.byType(types.EventStructuredData), 1)
}

func TestStreamInvoke_EmptyAndToolChunksDiscarded(t *testing.T) {
	sk := &scriptedSkill{events: []types.ExecutionEvent{
		{Type: types.ExecChunk, Model: "gpt-4o", Content: ""},
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "x", ToolCallChunk: true},
		{Type: types.ExecChunk, Model: "gpt-4o", Content: "real"},
		{Type: types.ExecEnd, Model: "gpt-4o", Content: "real",
			ToolCalls: []types.ToolCall{{Name: "search"}},
			Usage:     &types.CallUsage{InputTokens: 1, OutputTokens: 1}},
	}}
	env := newTestEnv(t, sk)
	sink := &captureSink{}

	err := env.svc.StreamInvoke(context.Background(), env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-chunks",
	}, sink)
	require.NoError(t, err)

	streams := sink.byType(types.EventStream)
	require.Len(t, streams, 1)
	assert.Equal(t, "real", streams[0].Content)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-chunks")
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "search", res.ToolCalls[0].Name)
}

func TestStreamInvoke_EstimationFallback(t *testing.T) {
	// No provider usage on the end event: the word estimator counts the
	// two-word query and the three-word answer.
	sk := &scriptedSkill{events: []types.ExecutionEvent{
		{Type: types.ExecEnd, Model: "gpt-4o", Content: "three word answer"},
	}}
	env := newTestEnv(t, sk)
	sink := &captureSink{}

	err := env.svc.StreamInvoke(context.Background(), env.user, &types.InvocationRequest{
		SkillName: "scripted",
		ResultID:  "r-est",
		Input:     &types.SkillInput{Query: "two words"},
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(context.Background(), env.user, "r-est")
	require.NoError(t, err)
	assert.Equal(t, types.TokenUsage{InputTokens: 2, OutputTokens: 3, TotalTokens: 5}, res.TokenUsage)
}

func TestInvoke_DispatchesOntoQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Invoke(ctx, env.user, &types.InvocationRequest{
		Input: &types.SkillInput{Query: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuting, res.Status)
	assert.Equal(t, "commonQnA", res.SkillName)

	depth, err := env.queue.Depth(ctx, ChannelInvokeSkill)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestCommonQnA_ComposesFromContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sink := &captureSink{}

	err := env.svc.StreamInvoke(ctx, env.user, &types.InvocationRequest{
		SkillName: "commonQnA",
		ResultID:  "r-qna",
		Input:     &types.SkillInput{Query: "what is this"},
		Context: types.SkillContext{
			types.KindText: {{ID: "t1", Title: "notes", Content: "inline snippet"}},
		},
	}, sink)
	require.NoError(t, err)

	res, err := env.svc.GetResult(ctx, env.user, "r-qna")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinish, res.Status)
	assert.Contains(t, res.Content, "what is this")
	assert.Contains(t, res.Content, "notes")
	assert.NotEmpty(t, sink.byType(types.EventStream))
}
