package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"gopkg.in/yaml.v3"
)

// manifest lists the documents of one insert run.
//
//	documents:
//	  - path: docs/acme.md
//	    category: companies
//	  - title: Note
//	    content: Alice works at Acme.
//	    metadata:
//	      author: bob
type manifest struct {
	Documents []manifestDocument `yaml:"documents"`
}

// manifestDocument is a document given inline or by a file path relative to the manifest.
type manifestDocument struct {
	model.Document `yaml:",inline"`
	Path           string `yaml:"path"`
}

func loadManifest(path string) ([]*model.Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, helper.NewError("read manifest", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, helper.NewConfigError("manifest", err)
	}

	base := filepath.Dir(path)
	docs := make([]*model.Document, 0, len(m.Documents))
	for i, entry := range m.Documents {
		doc, err := entry.resolve(base)
		if err != nil {
			return nil, helper.NewConfigError(fmt.Sprintf("manifest document %d", i), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (d manifestDocument) resolve(base string) (*model.Document, error) {
	if d.Path == "" {
		if d.Content == "" {
			return nil, errors.New("either path or content is required")
		}
		doc := d.Document
		return &doc, nil
	}
	if d.Content != "" {
		return nil, errors.New("path and content are mutually exclusive")
	}

	path := d.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	doc, err := model.NewDocumentFromFile(path, d.Metadata)
	if err != nil {
		return nil, err
	}
	if d.Title != "" {
		doc.Title = d.Title
	}
	if d.Source != "" {
		doc.Source = d.Source
	}
	doc.Category = d.Category
	return doc, nil
}
