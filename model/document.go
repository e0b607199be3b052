package model

import (
	"os"
	"path/filepath"
)

// Document is a source text handed to the ingestion pipeline.
type Document struct {
	Title    string   `json:"title,omitempty" yaml:"title"`
	Source   string   `json:"source,omitempty" yaml:"source"`
	Category string   `json:"category,omitempty" yaml:"category"`
	Content  string   `json:"content" yaml:"content"`
	Metadata Metadata `json:"metadata,omitempty" yaml:"metadata"`
}

// NewDocumentFromFile reads a file and creates a Document with the file content
// The title defaults to the filename, and source to the file path
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		Title:    title,
		Source:   filePath,
		Content:  string(content),
		Metadata: metadata,
	}, nil
}

// ChunkMetadata builds the base metadata shared by all chunks of the document.
// Explicit Source and Category fields win over metadata keys of the same name.
func (d *Document) ChunkMetadata(documentIndex int) (ChunkMetadata, error) {
	meta, err := NewChunkMetadata(d.Metadata)
	if err != nil {
		return meta, err
	}
	meta.DocumentIndex = documentIndex
	if d.Source != "" {
		meta.Source = d.Source
	}
	if d.Category != "" {
		meta.Category = d.Category
	}
	if d.Title != "" {
		if meta.Extra == nil {
			meta.Extra = Metadata{}
		}
		if _, ok := meta.Extra["title"]; !ok {
			meta.Extra["title"] = d.Title
		}
	}
	return meta, nil
}
