// update.go implements the "cmsdb update" command.
//
// Design: --id updates one document and prints it; --filter updates every
// match and prints the count. --diff is limited to --id because it needs
// the document before and after, which a filter update never returns.

package document

import (
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/diff"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

var (
	errTarget   = errors.New("exactly one of --id or --filter is required")
	errDiffByID = errors.New("--diff requires --id")
)

func (e *Extension) newUpdateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "update <collection> [patch|-]",
		Short: "Update documents",
		Long: `Apply a patch to one document (--id) or every match (--filter).
The patch is a JSON object of fields to set, read from stdin when omitted
or "-". Dotted keys set nested fields.

  cmsdb update pages '{"title": "Welcome"}' --id 3 --diff
  cmsdb update pages '{"isPublished": false}' --filter '{"siteId": "2"}'
  cmsdb update settings '{"routingType": "path"}' --filter '{}' --upsert`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runUpdate,
	}
	c.Flags().String(extension.FlagID, "", "Update the document with this id")
	c.Flags().String(extension.FlagFilter, "", "Update every document matching this JSON filter")
	c.Flags().Bool(extension.FlagUpsert, false, "Create the document when nothing matches")
	c.Flags().Bool(extension.FlagDiff, false, "Show a diff of the change (requires --id)")
	return c
}

func (e *Extension) runUpdate(c *cobra.Command, args []string) error {
	coll := args[0]
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}
	id, _ := c.Flags().GetString(extension.FlagID)
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)
	upsert, _ := c.Flags().GetBool(extension.FlagUpsert)
	showDiff, _ := c.Flags().GetBool(extension.FlagDiff)
	byFilter := c.Flags().Changed(extension.FlagFilter)

	if (id == "") == !byFilter {
		return cmd.PrintJSONError(errTarget)
	}
	if showDiff && id == "" {
		return cmd.PrintJSONError(errDiffByID)
	}

	doc, err := cmd.ParseDocument(arg)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("patch: %w", err))
	}
	patch := store.Patch(doc)
	opts := store.UpdateOptions{Upsert: upsert}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	if byFilter {
		f, err := cmd.ParseFilter(filterArg)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
		n, err := e.db.Update(ctx, coll, f, patch, opts)
		log.Event("document:update", "update").Collection(coll).Detail("matched", n).Detail("upsert", upsert).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("update %s: %w", coll, err))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]int64{"matched": n})
		}
		fmt.Fprintf(cmd.Out(), "%d matched\n", n)
		return nil
	}

	var before store.Document
	if showDiff {
		if before, err = e.db.FindByID(ctx, coll, id, store.FindOneOptions{}); err != nil {
			return cmd.PrintJSONError(fmt.Errorf("read %s/%s: %w", coll, id, err))
		}
	}

	after, err := e.db.UpdateByID(ctx, coll, id, patch, opts)
	if err == nil && after == nil {
		err = fmt.Errorf("%w: %s/%s", errNotFound, coll, id)
	}
	log.Event("document:update", "update_by_id").Collection(coll).ID(id).Detail("upsert", upsert).Write(err)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	if !showDiff {
		if cmd.JSON() {
			return cmd.PrintJSON(after)
		}
		return format.Document(cmd.Out(), after)
	}

	d, err := diff.Documents(before, after, coll+"/"+id+" (before)", coll+"/"+id+" (after)")
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]any{"document": after, "diff": d.Diff, "changed": d.Changed(), "fields": d.Fields})
	}
	fmt.Fprint(cmd.Out(), d.Format(cmd.Terminal()))
	return nil
}
