package main

import (
	"encoding/json"
	"errors"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/spf13/cobra"
)

func newInsertCmd(c *cli) *cobra.Command {
	var manifestPath string
	var texts []string
	var category string

	cmd := &cobra.Command{
		Use:   "insert [files...]",
		Short: "Ingest documents into the index",
		Long: `Ingest files, inline texts or the documents of a YAML manifest.
The ingestion summary is written to stdout as JSON.`,
		Example: `  hypergrapher insert notes/*.md --category notes
  hypergrapher insert --text "Alice works at Acme."
  hypergrapher insert --manifest corpus.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := collectDocuments(args, texts, manifestPath, category)
			if err != nil {
				return err
			}

			h, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			summary, err := h.Insert(cmd.Context(), docs, nil)
			if err != nil {
				return err
			}
			return writeJSON(c, summary)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing documents")
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "inline text to ingest (repeatable)")
	cmd.Flags().StringVar(&category, "category", "", "category for file and text documents")
	return cmd
}

func collectDocuments(paths []string, texts []string, manifestPath string, category string) ([]*model.Document, error) {
	var docs []*model.Document
	if manifestPath != "" {
		loaded, err := loadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	for _, path := range paths {
		doc, err := model.NewDocumentFromFile(path, nil)
		if err != nil {
			return nil, helper.NewError("read document", err)
		}
		doc.Category = category
		docs = append(docs, doc)
	}
	for _, text := range texts {
		docs = append(docs, &model.Document{Content: text, Category: category})
	}

	if len(docs) == 0 {
		return nil, helper.NewConfigError("insert", errors.New("no documents given"))
	}
	return docs, nil
}

func writeJSON(c *cli, v any) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
