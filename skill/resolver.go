package skill

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/skillstream/types"
)

const resolveConcurrency = 5

// ReferenceSource looks up the stored records context references point
// at. The store satisfies it; tests substitute fakes.
type ReferenceSource interface {
	GetResource(ctx context.Context, uid, id string) (*types.ContextReference, error)
	GetDocument(ctx context.Context, uid, id string) (*types.ContextReference, error)
}

// Resolver fills in the content of unpopulated context references.
// Resolution is additive and idempotent: already-populated entries are
// never touched, missing records are skipped, and resolving a resolved
// context fetches nothing.
type Resolver struct {
	source ReferenceSource
	logger *zap.Logger
}

// NewResolver creates a resolver over the given record source.
func NewResolver(source ReferenceSource, logger *zap.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.With(zap.String("component", "resolver")),
	}
}

// Resolve returns a copy of the context with resolvable references
// populated. Kinds resolve concurrently; within a kind, fetches run
// with bounded parallelism over the deduplicated set of unpopulated
// ids. Lookup failures are logged and skipped, never fatal.
func (r *Resolver) Resolve(ctx context.Context, uid string, sc types.SkillContext) (types.SkillContext, error) {
	if len(sc) == 0 {
		return sc, nil
	}
	out := sc.Clone()

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range types.ResolvableKinds() {
		refs := out[kind]
		if len(refs) == 0 {
			continue
		}
		kind := kind
		g.Go(func() error {
			return r.resolveKind(gctx, uid, kind, refs)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveKind(ctx context.Context, uid string, kind types.ReferenceKind, refs []types.ContextReference) error {
	// Deduplicate: a reference id appearing twice is fetched once.
	pending := make(map[string]struct{})
	for i := range refs {
		if !refs[i].Populated() && refs[i].ID != "" {
			pending[refs[i].ID] = struct{}{}
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	fetched := make(map[string]*types.ContextReference, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for id := range pending {
		id := id
		g.Go(func() error {
			rec, err := r.fetch(gctx, uid, kind, id)
			if err != nil {
				r.logger.Warn("context reference lookup failed",
					zap.String("kind", string(kind)),
					zap.String("id", id),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			fetched[id] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge by id, additive only.
	for i := range refs {
		if refs[i].Populated() {
			continue
		}
		rec, ok := fetched[refs[i].ID]
		if !ok || rec == nil {
			continue
		}
		refs[i].Content = rec.Content
		if refs[i].Title == "" {
			refs[i].Title = rec.Title
		}
		if refs[i].URL == "" {
			refs[i].URL = rec.URL
		}
	}
	return nil
}

func (r *Resolver) fetch(ctx context.Context, uid string, kind types.ReferenceKind, id string) (*types.ContextReference, error) {
	switch kind {
	case types.KindResource:
		return r.source.GetResource(ctx, uid, id)
	case types.KindDocument:
		return r.source.GetDocument(ctx, uid, id)
	default:
		return nil, nil
	}
}
