package model

import (
	"sort"
	"strings"
	"time"
)

// EntityType classifies an entity.
type EntityType string

const (
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeConcept      EntityType = "CONCEPT"
	EntityTypeTechnology   EntityType = "TECHNOLOGY"
	EntityTypeEvent        EntityType = "EVENT"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeProduct      EntityType = "PRODUCT"
	EntityTypeOther        EntityType = "OTHER"
)

var entityTypes = map[EntityType]struct{}{
	EntityTypePerson:       {},
	EntityTypeOrganization: {},
	EntityTypeConcept:      {},
	EntityTypeTechnology:   {},
	EntityTypeEvent:        {},
	EntityTypeLocation:     {},
	EntityTypeProduct:      {},
	EntityTypeOther:        {},
}

// ParseEntityType maps a label to an EntityType, case-insensitively.
// Unknown labels become OTHER.
func ParseEntityType(label string) EntityType {
	t := EntityType(strings.ToUpper(strings.TrimSpace(label)))
	if _, ok := entityTypes[t]; ok {
		return t
	}
	return EntityTypeOther
}

// Entity is a named thing mentioned in the text. Name is the unique key.
type Entity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"entity_type"`
	Description string     `json:"description,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
	MentionedIn []string   `json:"mentioned_in,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NormalizeEntityName trims surrounding whitespace from an entity name.
func NormalizeEntityName(name string) string {
	return strings.TrimSpace(name)
}

// NewEntity creates an entity with a normalized name and type.
func NewEntity(name string, entityType string, description string) *Entity {
	return &Entity{
		Name:        NormalizeEntityName(name),
		Type:        ParseEntityType(entityType),
		Description: strings.TrimSpace(description),
	}
}

// Merge applies incoming onto e:
//   - a non-empty description replaces the stored one
//   - the type is replaced unless the incoming type is OTHER and a specific type is stored
//   - a non-empty embedding replaces the stored one
//   - MentionedIn becomes the sorted union of both
func (e *Entity) Merge(incoming *Entity) {
	if incoming == nil {
		return
	}
	if incoming.Description != "" {
		e.Description = incoming.Description
	}
	if incoming.Type != "" && (incoming.Type != EntityTypeOther || e.Type == "") {
		e.Type = incoming.Type
	}
	if len(incoming.Embedding) > 0 {
		e.Embedding = append([]float32(nil), incoming.Embedding...)
	}
	e.MentionedIn = UnionSorted(e.MentionedIn, incoming.MentionedIn)
	if incoming.UpdatedAt.After(e.UpdatedAt) {
		e.UpdatedAt = incoming.UpdatedAt
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = incoming.CreatedAt
	}
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	c.MentionedIn = append([]string(nil), e.MentionedIn...)
	return &c
}

// UnionSorted returns the sorted set union of a and b without empty strings.
func UnionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	for _, s := range b {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
