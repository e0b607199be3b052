package model

import (
	"errors"
	"fmt"
)

// Extraction is the structured output of the extractor for one chunk.
type Extraction struct {
	Entities   []*Entity    `json:"entities"`
	Hyperedges []*Hyperedge `json:"hyperedges"`
}

// Validate normalizes e in place and checks it against the extraction schema.
// Entities with the same name are merged, unknown types become OTHER and every
// hyperedge must name at least two distinct known entities and carry content.
func (e *Extraction) Validate() error {
	if e == nil {
		return errors.New("extraction is nil")
	}

	index := make(map[string]*Entity, len(e.Entities))
	entities := make([]*Entity, 0, len(e.Entities))
	for i, entity := range e.Entities {
		if entity == nil {
			return fmt.Errorf("entity %d is nil", i)
		}
		entity.Name = NormalizeEntityName(entity.Name)
		if entity.Name == "" {
			return fmt.Errorf("entity %d has an empty name", i)
		}
		entity.Type = ParseEntityType(string(entity.Type))

		if existing, ok := index[entity.Name]; ok {
			existing.Merge(entity)
			continue
		}
		index[entity.Name] = entity
		entities = append(entities, entity)
	}
	e.Entities = entities

	seen := make(map[string]struct{}, len(e.Hyperedges))
	hyperedges := make([]*Hyperedge, 0, len(e.Hyperedges))
	for i, h := range e.Hyperedges {
		if h == nil {
			return fmt.Errorf("hyperedge %d is nil", i)
		}
		normalized := NewHyperedge(h.EntityNames, h.Content, h.Metadata)
		if normalized.Content == "" {
			return fmt.Errorf("hyperedge %d has empty content", i)
		}
		if len(normalized.EntityNames) < 2 {
			return fmt.Errorf("hyperedge %d %q has fewer than two distinct entities", i, normalized.Content)
		}
		for _, name := range normalized.EntityNames {
			if _, ok := index[name]; !ok {
				return fmt.Errorf("hyperedge %d %q references unknown entity %q", i, normalized.Content, name)
			}
		}
		if _, dup := seen[normalized.ID]; dup {
			continue
		}
		seen[normalized.ID] = struct{}{}
		hyperedges = append(hyperedges, normalized)
	}
	e.Hyperedges = hyperedges

	return nil
}
