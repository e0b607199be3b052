package graph

import (
	"context"

	"github.com/siherrmann/hypergrapher/model"
)

// Neighborhood exposes hyperedge participation for traversal.
// Both methods should return a stable order so traversal is deterministic.
type Neighborhood interface {
	HyperedgeIDsOf(ctx context.Context, entity string) ([]string, error)
	ParticipantsOf(ctx context.Context, hyperedgeID string) ([]string, error)
}

// TraversalResult contains an entity and its distance from the source
type TraversalResult struct {
	Name     string
	Distance int
}

// BFS performs breadth-first search over co-participation in hyperedges.
// One hop moves from an entity through a shared hyperedge to another entity.
// The source is not part of the result, results are in discovery order and
// the search stops once limit entities were found (limit <= 0 means no cap).
func BFS(ctx context.Context, g Neighborhood, source string, maxHops int, limit int) ([]*TraversalResult, error) {
	if maxHops <= 0 {
		return []*TraversalResult{}, nil
	}

	visited := map[string]bool{source: true}
	seenHyperedges := map[string]bool{}
	queue := []TraversalResult{{Name: source, Distance: 0}}
	results := []*TraversalResult{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		hyperedgeIDs, err := g.HyperedgeIDsOf(ctx, current.Name)
		if err != nil {
			return nil, err
		}

		for _, hyperedgeID := range hyperedgeIDs {
			if seenHyperedges[hyperedgeID] {
				continue
			}
			seenHyperedges[hyperedgeID] = true

			participants, err := g.ParticipantsOf(ctx, hyperedgeID)
			if err != nil {
				return nil, err
			}

			for _, name := range participants {
				if visited[name] {
					continue
				}
				visited[name] = true

				next := TraversalResult{Name: name, Distance: current.Distance + 1}
				results = append(results, &next)
				if limit > 0 && len(results) >= limit {
					return results, nil
				}
				queue = append(queue, next)
			}
		}
	}

	return results, nil
}

// ToEntityDistances converts traversal results to the store result type.
func ToEntityDistances(results []*TraversalResult) []*model.EntityDistance {
	out := make([]*model.EntityDistance, 0, len(results))
	for _, r := range results {
		out = append(out, &model.EntityDistance{Name: r.Name, Distance: r.Distance})
	}
	return out
}
