package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var hyperedgeNamespace = uuid.MustParse("6f1c2b9e-3a4d-5e8f-9b0a-7c6d5e4f3a21")

// Hyperedge is one n-ary fact connecting two or more entities.
// EntityNames is kept sorted so that participant order never changes identity.
type Hyperedge struct {
	ID          string    `json:"id"`
	EntityNames []string  `json:"entities"`
	Content     string    `json:"content"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeEntityNames trims, drops empty names, de-duplicates and sorts.
func NormalizeEntityNames(names []string) []string {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		trimmed = append(trimmed, NormalizeEntityName(n))
	}
	return UnionSorted(trimmed, nil)
}

// HyperedgeID derives the identity of a hyperedge from its participant set and content.
func HyperedgeID(names []string, content string) string {
	key := strings.Join(NormalizeEntityNames(names), "\x1f") + "\x1e" + strings.TrimSpace(content)
	return uuid.NewSHA1(hyperedgeNamespace, []byte(key)).String()
}

// NewHyperedge creates a hyperedge with normalized participants and a derived ID.
func NewHyperedge(names []string, content string, metadata Metadata) *Hyperedge {
	normalized := NormalizeEntityNames(names)
	content = strings.TrimSpace(content)
	return &Hyperedge{
		ID:          HyperedgeID(normalized, content),
		EntityNames: normalized,
		Content:     content,
		Metadata:    metadata,
	}
}

// Merge unions the participants of incoming into h and applies its metadata keys.
func (h *Hyperedge) Merge(incoming *Hyperedge) {
	if incoming == nil {
		return
	}
	h.EntityNames = UnionSorted(h.EntityNames, incoming.EntityNames)
	if len(incoming.Metadata) > 0 {
		h.Metadata = h.Metadata.Merge(incoming.Metadata)
	}
	if h.Content == "" {
		h.Content = incoming.Content
	}
	if incoming.UpdatedAt.After(h.UpdatedAt) {
		h.UpdatedAt = incoming.UpdatedAt
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = incoming.CreatedAt
	}
}

// Clone returns a deep copy of h.
func (h *Hyperedge) Clone() *Hyperedge {
	if h == nil {
		return nil
	}
	c := *h
	c.EntityNames = append([]string(nil), h.EntityNames...)
	c.Metadata = h.Metadata.Clone()
	return &c
}
