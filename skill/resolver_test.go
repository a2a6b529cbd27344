package skill

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/types"
)

// countingSource records every fetch so tests can assert how many
// lookups resolution actually performed.
type countingSource struct {
	mu        sync.Mutex
	resources map[string]*types.ContextReference
	documents map[string]*types.ContextReference
	fetches   int
}

func (c *countingSource) GetResource(_ context.Context, _, id string) (*types.ContextReference, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	if ref, ok := c.resources[id]; ok {
		return ref, nil
	}
	return nil, errors.New("record not found")
}

func (c *countingSource) GetDocument(_ context.Context, _, id string) (*types.ContextReference, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	if ref, ok := c.documents[id]; ok {
		return ref, nil
	}
	return nil, errors.New("record not found")
}

func (c *countingSource) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func TestResolver_PopulatesUnresolvedReferences(t *testing.T) {
	src := &countingSource{
		resources: map[string]*types.ContextReference{
			"res-1": {ID: "res-1", Title: "stored title", Content: "resource body", URL: "https://x"},
		},
		documents: map[string]*types.ContextReference{
			"doc-1": {ID: "doc-1", Title: "paper", Content: "document body"},
		},
	}
	r := NewResolver(src, zap.NewNop())

	resolved, err := r.Resolve(context.Background(), "u1", types.SkillContext{
		types.KindResource: {{ID: "res-1", Title: "caller title"}},
		types.KindDocument: {{ID: "doc-1"}},
	})
	require.NoError(t, err)

	res := resolved[types.KindResource][0]
	assert.Equal(t, "resource body", res.Content)
	// Caller-supplied titles win over stored ones.
	assert.Equal(t, "caller title", res.Title)

	doc := resolved[types.KindDocument][0]
	assert.Equal(t, "document body", doc.Content)
	assert.Equal(t, "paper", doc.Title)
}

func TestResolver_IdempotentOnPopulatedContext(t *testing.T) {
	src := &countingSource{}
	r := NewResolver(src, zap.NewNop())

	sc := types.SkillContext{
		types.KindResource: {{ID: "res-1", Content: "already here"}},
		types.KindText:     {{ID: "t1", Content: "inline"}},
	}
	resolved, err := r.Resolve(context.Background(), "u1", sc)
	require.NoError(t, err)

	// A fully populated context fetches nothing.
	assert.Zero(t, src.fetchCount())
	assert.Equal(t, "already here", resolved[types.KindResource][0].Content)
}

func TestResolver_DeduplicatesIDs(t *testing.T) {
	src := &countingSource{
		resources: map[string]*types.ContextReference{
			"res-1": {ID: "res-1", Content: "body"},
		},
	}
	r := NewResolver(src, zap.NewNop())

	resolved, err := r.Resolve(context.Background(), "u1", types.SkillContext{
		types.KindResource: {{ID: "res-1"}, {ID: "res-1"}, {ID: "res-1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, src.fetchCount())
	for _, ref := range resolved[types.KindResource] {
		assert.Equal(t, "body", ref.Content)
	}
}

func TestResolver_MissingRecordsNonFatal(t *testing.T) {
	src := &countingSource{
		resources: map[string]*types.ContextReference{
			"res-1": {ID: "res-1", Content: "body"},
		},
	}
	r := NewResolver(src, zap.NewNop())

	resolved, err := r.Resolve(context.Background(), "u1", types.SkillContext{
		types.KindResource: {{ID: "res-1"}, {ID: "gone"}},
	})
	require.NoError(t, err)

	refs := resolved[types.KindResource]
	assert.Equal(t, "body", refs[0].Content)
	assert.Empty(t, refs[1].Content)
}

func TestResolver_DoesNotMutateInput(t *testing.T) {
	src := &countingSource{
		resources: map[string]*types.ContextReference{
			"res-1": {ID: "res-1", Content: "body"},
		},
	}
	r := NewResolver(src, zap.NewNop())

	original := types.SkillContext{
		types.KindResource: {{ID: "res-1"}},
	}
	resolved, err := r.Resolve(context.Background(), "u1", original)
	require.NoError(t, err)

	assert.Empty(t, original[types.KindResource][0].Content)
	assert.Equal(t, "body", resolved[types.KindResource][0].Content)
}
