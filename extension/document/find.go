// find.go implements the "cmsdb find" and "cmsdb get" commands.
//
// find prints a table by default so documents with differing fields still
// line up; -o json prints the full documents.

package document

import (
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

// errNotFound is reported by get for a missing id.
var errNotFound = errors.New("document not found")

func (e *Extension) newFindCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "find <collection>",
		Short: "Find documents",
		Long: `Find documents matching a filter.

  cmsdb find pages
  cmsdb find pages --filter '{"isPublished": true}' --sort -createdAt --limit 10
  cmsdb find pages --filter '{"views": {"$gte": 100}}' --fields title,route
  cmsdb find sites --ids-only

Filters use the MongoDB query shape: equality, $eq $ne $gt $gte $lt $lte
$in $nin $exists $regex, and $and $or $nor. Sort is a comma-separated
field list; prefix a field with - for descending.`,
		Args: cobra.ExactArgs(1),
		RunE: e.runFind,
	}
	c.Flags().String(extension.FlagFilter, "", "JSON filter")
	c.Flags().String(extension.FlagSort, "", "Sort fields, e.g. -createdAt,title")
	c.Flags().Int64(extension.FlagLimit, 0, "Maximum documents (0 = all)")
	c.Flags().Int64(extension.FlagSkip, 0, "Documents to skip")
	c.Flags().String(extension.FlagFields, "", "Comma-separated fields to return")
	c.Flags().Bool(extension.FlagIDsOnly, false, "Print only document ids")
	return c
}

func (e *Extension) runFind(c *cobra.Command, args []string) error {
	coll := args[0]
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)
	sortArg, _ := c.Flags().GetString(extension.FlagSort)
	limit, _ := c.Flags().GetInt64(extension.FlagLimit)
	skip, _ := c.Flags().GetInt64(extension.FlagSkip)
	fieldsArg, _ := c.Flags().GetString(extension.FlagFields)
	idsOnly, _ := c.Flags().GetBool(extension.FlagIDsOnly)

	f, err := cmd.ParseFilter(filterArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	sort, err := store.ParseSort(sortArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	opts := store.FindOptions{Limit: limit, Skip: skip, Sort: sort, Projection: cmd.ParseFields(fieldsArg)}
	if idsOnly {
		opts.Projection = store.Projection{store.FieldID}
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	docs, err := e.db.Find(ctx, coll, f, opts)
	log.Event("document:find", "find").Collection(coll).Detail("count", len(docs)).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("find %s: %w", coll, err))
	}

	switch {
	case cmd.JSON():
		if docs == nil {
			docs = []store.Document{}
		}
		return cmd.PrintJSON(docs)
	case idsOnly:
		return format.IDs(cmd.Out(), docs)
	}
	cols := []string(nil)
	if len(opts.Projection) > 0 {
		cols = append([]string{store.FieldID}, opts.Projection...)
	}
	return format.Table(cmd.Out(), docs, cols)
}

func (e *Extension) newGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one document by id",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runGet,
	}
	c.Flags().String(extension.FlagFields, "", "Comma-separated fields to return")
	return c
}

func (e *Extension) runGet(c *cobra.Command, args []string) error {
	coll, id := args[0], args[1]
	fieldsArg, _ := c.Flags().GetString(extension.FlagFields)

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	doc, err := e.db.FindByID(ctx, coll, id, store.FindOneOptions{Projection: cmd.ParseFields(fieldsArg)})
	if err == nil && doc == nil {
		err = fmt.Errorf("%w: %s/%s", errNotFound, coll, id)
	}
	log.Event("document:get", "get").Collection(coll).ID(id).Write(err)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	if cmd.JSON() {
		return cmd.PrintJSON(doc)
	}
	return format.Document(cmd.Out(), doc)
}
