package helper

import (
	"errors"
	"fmt"
)

// Error wraps an underlying error with the operation that failed.
// Nested Errors build a readable trace like "insert chunk: scan: sql: no rows".
type Error struct {
	Original error
	Trace    string
}

// NewError wraps err with a trace of the failing operation.
// It returns nil if err is nil.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Original: err,
		Trace:    trace,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Original)
}

func (e *Error) Unwrap() error {
	return e.Original
}

// Taxonomy of failures surfaced by the index. Use errors.Is to match them.
var (
	ErrConfig     = errors.New("config error")
	ErrExtraction = errors.New("extraction error")
	ErrEmbedding  = errors.New("embedding error")
	ErrStore      = errors.New("store error")
	ErrNotFound   = errors.New("not found")
)

// Capability names used in CapabilityError.
const (
	CapabilityConfig    = "config"
	CapabilityEmbedder  = "embedder"
	CapabilityExtractor = "extractor"
	CapabilityStore     = "graph_store"
)

// CapabilityError is an error raised by (or on behalf of) an external capability.
// Key carries the chunk id, entity name or hyperedge id needed to retry the unit.
type CapabilityError struct {
	Kind       error
	Capability string
	Operation  string
	Key        string
	Err        error
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Kind, e.Capability, e.Operation)
	if e.Key != "" {
		msg += fmt.Sprintf(" [%s]", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CapabilityError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(field string, err error) error {
	return &CapabilityError{Kind: ErrConfig, Capability: CapabilityConfig, Operation: "validate", Key: field, Err: err}
}

// NewExtractionError reports a schema violation for the chunk with the given id.
func NewExtractionError(chunkID string, err error) error {
	return &CapabilityError{Kind: ErrExtraction, Capability: CapabilityExtractor, Operation: "extract", Key: chunkID, Err: err}
}

// NewEmbeddingError reports a failed embedding call.
func NewEmbeddingError(operation string, key string, err error) error {
	return &CapabilityError{Kind: ErrEmbedding, Capability: CapabilityEmbedder, Operation: operation, Key: key, Err: err}
}

// NewStoreError reports a failed graph store call.
func NewStoreError(operation string, key string, err error) error {
	return &CapabilityError{Kind: ErrStore, Capability: CapabilityStore, Operation: operation, Key: key, Err: err}
}

// NewNotFoundError reports a missing entity, hyperedge or chunk.
func NewNotFoundError(operation string, key string) error {
	return &CapabilityError{Kind: ErrNotFound, Capability: CapabilityStore, Operation: operation, Key: key}
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrExtraction) || errors.Is(err, ErrNotFound)
}
