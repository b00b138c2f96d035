// rm.go implements the "cmsdb rm" command.
//
// Design: Deletion is permanent. A filter delete must name at least one
// field so an omitted flag can never empty a collection.

package document

import (
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

var errEmptyFilter = errors.New("refusing to delete with an empty filter")

func (e *Extension) newRmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "rm <collection>",
		Short: "Delete documents",
		Long: `Delete one document (--id) or every match of a non-empty filter.
Deletion is permanent.

  cmsdb rm pages --id 4
  cmsdb rm pages --filter '{"siteId": "2", "isDraft": true}'`,
		Args: cobra.ExactArgs(1),
		RunE: e.runRm,
	}
	c.Flags().String(extension.FlagID, "", "Delete the document with this id")
	c.Flags().String(extension.FlagFilter, "", "Delete every document matching this JSON filter")
	return c
}

func (e *Extension) runRm(c *cobra.Command, args []string) error {
	coll := args[0]
	id, _ := c.Flags().GetString(extension.FlagID)
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)

	if (id == "") == (filterArg == "") {
		return cmd.PrintJSONError(errTarget)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	if id != "" {
		ok, err := e.db.DeleteByID(ctx, coll, id)
		log.Event("document:rm", "delete_by_id").Collection(coll).ID(id).Detail("deleted", ok).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("rm %s/%s: %w", coll, id, err))
		}
		if !ok {
			return cmd.PrintJSONError(fmt.Errorf("%w: %s/%s", errNotFound, coll, id))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]any{"deleted": true, "id": id})
		}
		fmt.Fprintf(cmd.Out(), "deleted %s/%s\n", coll, id)
		return nil
	}

	f, err := cmd.ParseFilter(filterArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	if len(f) == 0 {
		return cmd.PrintJSONError(errEmptyFilter)
	}
	n, err := e.db.Delete(ctx, coll, f)
	log.Event("document:rm", "delete").Collection(coll).Detail("count", n).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("rm %s: %w", coll, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]int64{"deleted": n})
	}
	fmt.Fprintf(cmd.Out(), "%d deleted\n", n)
	return nil
}
