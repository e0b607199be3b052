package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentFromFile(t *testing.T) {
	t.Run("Valid call NewDocumentFromFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "notes.md")
		content := "Alice works at Acme."
		err := os.WriteFile(filePath, []byte(content), 0600)
		require.NoError(t, err)

		doc, err := NewDocumentFromFile(filePath, Metadata{"author": "test"})
		require.NoError(t, err)
		assert.Equal(t, "notes", doc.Title, "Title should be filename without extension")
		assert.Equal(t, filePath, doc.Source, "Source should be file path")
		assert.Equal(t, content, doc.Content)
		assert.Equal(t, "test", doc.Metadata["author"])
	})

	t.Run("Invalid call NewDocumentFromFile with missing file", func(t *testing.T) {
		doc, err := NewDocumentFromFile("/non/existent/file.txt", nil)
		require.Error(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Title keeps inner dots", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "my.file.name.txt")
		require.NoError(t, os.WriteFile(filePath, []byte("x"), 0600))

		doc, err := NewDocumentFromFile(filePath, nil)
		require.NoError(t, err)
		assert.Equal(t, "my.file.name", doc.Title, "Title should remove only last extension")
	})
}

func TestDocumentChunkMetadata(t *testing.T) {
	t.Run("Valid call ChunkMetadata", func(t *testing.T) {
		doc := &Document{
			Title:    "Report",
			Category: "news",
			Metadata: Metadata{"source": "wire", "lang": "en"},
		}

		meta, err := doc.ChunkMetadata(3)
		require.NoError(t, err)
		assert.Equal(t, 3, meta.DocumentIndex)
		assert.Equal(t, "wire", meta.Source, "Expected source from metadata")
		assert.Equal(t, "news", meta.Category, "Expected category from document field")
		assert.Equal(t, "en", meta.Extra["lang"])
		assert.Equal(t, "Report", meta.Extra["title"])
	})

	t.Run("Invalid call ChunkMetadata with reserved key", func(t *testing.T) {
		doc := &Document{Metadata: Metadata{"chunk_index": 7}}
		_, err := doc.ChunkMetadata(0)
		assert.ErrorIs(t, err, helper.ErrConfig)
		assert.Contains(t, err.Error(), "chunk_index")
	})

	t.Run("Invalid call ChunkMetadata with non string source", func(t *testing.T) {
		doc := &Document{Metadata: Metadata{"source": 42}}
		_, err := doc.ChunkMetadata(0)
		assert.ErrorIs(t, err, helper.ErrConfig)
	})
}
