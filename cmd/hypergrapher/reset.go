package main

import (
	"errors"
	"fmt"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/spf13/cobra"
)

func newResetCmd(c *cli) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all chunks, entities and facts and rebuild the indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return helper.NewConfigError("reset", errors.New("refusing to delete all data without --yes"))
			}

			h, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			if err := h.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Reset complete")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm deletion of all data")
	return cmd
}
