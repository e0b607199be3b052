package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("hypergrapher is unhealthy")

func newHealthCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the store connection and vector index dimensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			report := h.CheckHealth(cmd.Context())
			if asJSON {
				if err := writeJSON(c, report); err != nil {
					return err
				}
			} else {
				printHealth(c.out, report)
			}

			if !report.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "write the report as JSON")
	return cmd
}

func printHealth(w io.Writer, report *model.HealthReport) {
	status := color.New(color.FgGreen, color.Bold).Sprint("healthy")
	if !report.Healthy {
		status = color.New(color.FgRed, color.Bold).Sprint("unhealthy")
	}
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Embedder dimensions: %d\n", report.EmbedderDimensions)
	for _, message := range report.Messages {
		fmt.Fprintf(w, "  - %s\n", message)
	}
}
