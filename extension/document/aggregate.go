// aggregate.go implements the "cmsdb aggregate" command.

package document

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

func (e *Extension) newAggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <collection> [pipeline|-]",
		Short: "Run an aggregation pipeline",
		Long: `Run a pipeline given as a JSON array of stages, read from stdin when
omitted or "-". Supported stages: $match, $group (with $sum or $count),
$sort and $limit.

  cmsdb aggregate pages '[{"$group": {"_id": "$siteId", "pages": {"$sum": 1}}}, {"$sort": {"pages": -1}}]'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runAggregate,
	}
}

func (e *Extension) runAggregate(c *cobra.Command, args []string) error {
	coll := args[0]
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	var raw []map[string]any
	if err := cmd.ReadJSON(arg, &raw); err != nil {
		return cmd.PrintJSONError(fmt.Errorf("pipeline: %w", err))
	}
	p, err := store.ParsePipeline(raw)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	docs, err := e.db.Aggregate(ctx, coll, p)
	log.Event("document:aggregate", "aggregate").Collection(coll).Detail("stages", len(p)).Detail("count", len(docs)).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("aggregate %s: %w", coll, err))
	}
	if cmd.JSON() {
		if docs == nil {
			docs = []store.Document{}
		}
		return cmd.PrintJSON(docs)
	}
	return format.Table(cmd.Out(), docs, nil)
}
