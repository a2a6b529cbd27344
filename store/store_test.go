package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/skillstream/types"
)

func setupTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStore_UserRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &types.User{UID: "u1", Name: "alice", Locale: "en"}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ResultRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res := &types.ActionResult{
		ResultID:  "r1",
		UID:       "u1",
		Type:      types.ResultTypeSkill,
		SkillName: "commonQnA",
		ModelName: "gpt-4o",
		Status:    types.StatusExecuting,
	}
	require.NoError(t, s.CreateResult(ctx, res))

	got, err := s.GetResult(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuting, got.Status)
	assert.Equal(t, "commonQnA", got.SkillName)

	// Scoped by owner: another uid cannot see it.
	_, err = s.GetResult(ctx, "u2", "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ResultIDUniquePerUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res := &types.ActionResult{ResultID: "r1", UID: "u1", Status: types.StatusExecuting}
	require.NoError(t, s.CreateResult(ctx, res))
	assert.Error(t, s.CreateResult(ctx, res))

	// Same result id for a different user is fine.
	other := &types.ActionResult{ResultID: "r1", UID: "u2", Status: types.StatusExecuting}
	assert.NoError(t, s.CreateResult(ctx, other))
}

func TestStore_CommitResult(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res := &types.ActionResult{ResultID: "r1", UID: "u1", Status: types.StatusExecuting}
	require.NoError(t, s.CreateResult(ctx, res))

	res.Status = types.StatusFinish
	res.Content = "Hello"
	res.Logs = []string{"step one", "step two"}
	res.StructuredData = map[string]any{"sources": []any{"doc-1"}}
	res.ToolCalls = []types.ToolCall{{Name: "search"}}
	res.TokenUsage = types.TokenUsage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12}
	require.NoError(t, s.CommitResult(ctx, res))

	got, err := s.GetResult(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinish, got.Status)
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, []string{"step one", "step two"}, got.Logs)
	assert.Equal(t, types.TokenUsage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12}, got.TokenUsage)
	assert.Len(t, got.ToolCalls, 1)
}

func TestStore_GetResultsSortedAscendingDropsMissing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"r1", "r2", "r3"} {
		po := &ActionResultPO{ResultID: id, UID: "u1", Status: "finish",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.db.Create(po).Error)
	}

	got, err := s.GetResults(ctx, "u1", []string{"r3", "missing", "r1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ResultID)
	assert.Equal(t, "r3", got[1].ResultID)
}

func TestStore_ListResultsPagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		require.NoError(t, s.CreateResult(ctx, &types.ActionResult{
			ResultID: id, UID: "u1", SkillName: "commonQnA", Status: types.StatusFinish,
		}))
	}

	page1, err := s.ListResults(ctx, "u1", ResultFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := s.ListResults(ctx, "u1", ResultFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	none, err := s.ListResults(ctx, "u1", ResultFilter{SkillName: "other", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_TriggerRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	when := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	trig := &types.SkillTrigger{
		TriggerID: "tr1",
		UID:       "u1",
		SkillName: "dailyDigest",
		Type:      types.TriggerTimer,
		Timer:     &types.TimerConfig{Datetime: when, RepeatInterval: types.RepeatDay},
		Input:     &types.SkillInput{Query: "digest"},
	}
	require.NoError(t, s.CreateTriggers(ctx, []*types.SkillTrigger{trig}))

	got, err := s.GetTrigger(ctx, "u1", "tr1")
	require.NoError(t, err)
	require.NotNil(t, got.Timer)
	assert.Equal(t, types.RepeatDay, got.Timer.RepeatInterval)
	assert.Equal(t, "digest", got.Input.Query)
	assert.Empty(t, got.BoundJobID)

	require.NoError(t, s.BindTriggerJob(ctx, "u1", "tr1", "job-1", true))
	got, err = s.GetTrigger(ctx, "u1", "tr1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.BoundJobID)
	assert.True(t, got.Enabled)

	require.NoError(t, s.DeleteTrigger(ctx, "u1", "tr1"))
	_, err = s.GetTrigger(ctx, "u1", "tr1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ResourceAndDocumentLookup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateResource(ctx, "u1", &types.ContextReference{
		ID: "res-1", Title: "notes", Content: "resource body",
	}))
	require.NoError(t, s.CreateDocument(ctx, "u1", &types.ContextReference{
		ID: "doc-1", Title: "paper", Content: "document body",
	}))

	ref, err := s.GetResource(ctx, "u1", "res-1")
	require.NoError(t, err)
	assert.Equal(t, "resource body", ref.Content)

	ref, err = s.GetDocument(ctx, "u1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "document body", ref.Content)

	_, err = s.GetResource(ctx, "u2", "res-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateUsageRecords(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	jobs := []*types.UsageReportJob{
		{
			UID: "u1", ResultID: "r1",
			Meta:      types.ActionMeta{SkillName: "commonQnA", ModelName: "gpt-4o", Type: types.ResultTypeSkill},
			Item:      types.TokenUsageItem{Tier: "t1", Provider: "openai", ModelName: "gpt-4o", InputTokens: 10, OutputTokens: 2},
			Timestamp: time.Now(),
		},
	}
	require.NoError(t, s.CreateUsageRecords(ctx, jobs))

	var count int64
	require.NoError(t, s.db.Model(&UsageRecordPO{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
