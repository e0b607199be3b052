package retrieval

import (
	"context"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// reachedSet keeps entities in discovery order with their smallest distance.
type reachedSet struct {
	order    []string
	distance map[string]int
}

func newReachedSet() *reachedSet {
	return &reachedSet{distance: map[string]int{}}
}

// add records name at distance d. A name keeps its first discovery position,
// its distance only ever decreases.
func (r *reachedSet) add(name string, d int) {
	name = model.NormalizeEntityName(name)
	if name == "" {
		return
	}
	if existing, ok := r.distance[name]; ok {
		if d < existing {
			r.distance[name] = d
		}
		return
	}
	r.distance[name] = d
	r.order = append(r.order, name)
}

func (r *reachedSet) clone() *reachedSet {
	c := newReachedSet()
	for _, name := range r.order {
		c.add(name, r.distance[name])
	}
	return c
}

type expansion struct {
	entities   *reachedSet
	hyperedges []*model.HyperedgeHit
	chunks     []*model.ExpandedChunk
}

// expand grows the frontier over shared hyperedges and collects hyperedges
// and expanded chunks. The frontier itself is not modified.
func (e *Engine) expand(ctx context.Context, vector []float32, frontier *reachedSet, seeds []*model.ChunkHit, config *model.QueryConfig) (*expansion, error) {
	x := &expansion{
		entities:   frontier.clone(),
		hyperedges: []*model.HyperedgeHit{},
		chunks:     []*model.ExpandedChunk{},
	}

	if config.IncludeEntitySeeds {
		entities, err := read(ctx, e, func(ctx context.Context) ([]*model.ScoredEntity, error) {
			return e.store.SearchEntities(ctx, vector, config.TopN)
		})
		if err != nil {
			return nil, helper.NewError("search entities", err)
		}
		for _, s := range entities {
			x.entities.add(s.Entity.Name, 0)
		}
	}

	seedNames := append([]string(nil), x.entities.order...)

	if config.MaxHops > 0 {
		for _, seed := range seedNames {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			reached, err := read(ctx, e, func(ctx context.Context) ([]*model.EntityDistance, error) {
				return e.store.TraverseFromEntity(ctx, seed, config.MaxHops, config.TraversalLimit)
			})
			if err != nil {
				return nil, helper.NewError("traverse from "+seed, err)
			}
			for _, r := range reached {
				x.entities.add(r.Name, r.Distance)
			}
		}
	}

	// Hyperedges of entities below the hop bound stay within MaxHops hops of a seed.
	bound := max(config.MaxHops, 1)
	seen := map[string]struct{}{}
	for _, name := range x.entities.order {
		if x.entities.distance[name] >= bound {
			continue
		}
		hyperedges, err := read(ctx, e, func(ctx context.Context) ([]*model.Hyperedge, error) {
			return e.store.HyperedgesByEntity(ctx, name, config.HyperedgeLimit)
		})
		if err != nil {
			return nil, helper.NewError("hyperedges of "+name, err)
		}
		for _, h := range hyperedges {
			if _, ok := seen[h.ID]; ok {
				continue
			}
			seen[h.ID] = struct{}{}
			x.hyperedges = append(x.hyperedges, &model.HyperedgeHit{
				ID:       h.ID,
				Entities: append([]string{}, h.EntityNames...),
				Content:  h.Content,
			})
		}
	}

	if config.MaxHops > 0 && config.MaxExpandedChunks > 0 {
		chunks, err := e.expandChunks(ctx, x.entities, seeds, config.MaxExpandedChunks)
		if err != nil {
			return nil, err
		}
		x.chunks = chunks
	}

	return x, nil
}

// expandChunks returns chunks mentioning entities reached at distance one or
// more, in entity discovery order, without seed chunks and at most limit.
func (e *Engine) expandChunks(ctx context.Context, entities *reachedSet, seeds []*model.ChunkHit, limit int) ([]*model.ExpandedChunk, error) {
	taken := map[string]struct{}{}
	for _, s := range seeds {
		taken[s.ID] = struct{}{}
	}

	type origin struct {
		via      string
		distance int
	}
	var ids []string
	origins := map[string]origin{}

	for _, name := range entities.order {
		if len(ids) >= limit {
			break
		}
		d := entities.distance[name]
		if d < 1 {
			continue
		}
		chunkIDs, err := read(ctx, e, func(ctx context.Context) ([]string, error) {
			return e.store.ChunkIDsByEntity(ctx, name)
		})
		if err != nil {
			return nil, helper.NewError("chunks of "+name, err)
		}
		for _, id := range chunkIDs {
			if _, ok := taken[id]; ok {
				continue
			}
			taken[id] = struct{}{}
			ids = append(ids, id)
			origins[id] = origin{via: name, distance: d}
			if len(ids) >= limit {
				break
			}
		}
	}

	out := []*model.ExpandedChunk{}
	if len(ids) == 0 {
		return out, nil
	}

	chunks, err := read(ctx, e, func(ctx context.Context) ([]*model.Chunk, error) {
		return e.store.SelectChunks(ctx, ids)
	})
	if err != nil {
		return nil, helper.NewError("select expanded chunks", err)
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		o := origins[id]
		out = append(out, &model.ExpandedChunk{
			ID:       c.ID,
			Content:  c.Content,
			Entities: append([]string{}, c.Entities...),
			Via:      o.via,
			Distance: o.distance,
			Metadata: c.Metadata,
		})
	}
	return out, nil
}
