// count.go implements the "cmsdb count" and "cmsdb distinct" commands.

package document

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func (e *Extension) newCountCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count documents",
		Long: `Count documents matching a filter. A collection that was never
written to counts 0.`,
		Args: cobra.ExactArgs(1),
		RunE: e.runCount,
	}
	c.Flags().String(extension.FlagFilter, "", "JSON filter")
	return c
}

func (e *Extension) runCount(c *cobra.Command, args []string) error {
	coll := args[0]
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)
	f, err := cmd.ParseFilter(filterArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	n, err := e.db.Count(ctx, coll, f)
	log.Event("document:count", "count").Collection(coll).Detail("count", n).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("count %s: %w", coll, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]int64{"count": n})
	}
	fmt.Fprintln(cmd.Out(), n)
	return nil
}

func (e *Extension) newDistinctCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "distinct <collection> <field>",
		Short: "List the distinct values of a field",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runDistinct,
	}
	c.Flags().String(extension.FlagFilter, "", "JSON filter")
	return c
}

func (e *Extension) runDistinct(c *cobra.Command, args []string) error {
	coll, field := args[0], args[1]
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)
	f, err := cmd.ParseFilter(filterArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	vals, err := e.db.Distinct(ctx, coll, field, f)
	log.Event("document:distinct", "distinct").Collection(coll).Detail("field", field).Detail("count", len(vals)).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("distinct %s.%s: %w", coll, field, err))
	}
	if cmd.JSON() {
		if vals == nil {
			vals = []any{}
		}
		return cmd.PrintJSON(vals)
	}
	return format.Values(cmd.Out(), vals)
}
