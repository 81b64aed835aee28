package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swdee/go-synthset/scale"
)

// scaleCommand creates the scale command for inspecting a category table.
func (c *CLI) scaleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale <categories.csv> [category...]",
		Short: "Show category scale factors",
		Long: `Show category scale factors.

Without categories every entry of the table is listed in file order.  With
categories each one is resolved the way a composition would resolve it,
unknown or invalid entries fall back to 1.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScale(cmd.Context(), args[0], args[1:])
		},
	}

	return cmd
}

// runScale prints the table or the resolved factors of categories.
func (c *CLI) runScale(ctx context.Context, path string, categories []string) error {
	logger := loggerFromContext(ctx)

	table, err := scale.LoadCSVFile(path, logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, StyleTitle.Render(fmt.Sprintf("%s (%d categories)", path, table.Len())))

	if len(categories) == 0 {
		categories = table.Names()
	}

	for _, name := range categories {
		printKeyValue(c.out, scale.Normalize(name), fmt.Sprintf("%g", table.Resolve(name)))
	}

	return nil
}
