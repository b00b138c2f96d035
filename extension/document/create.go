// create.go implements the "cmsdb create" command.
//
// The document comes from the argument or stdin. A JSON array creates
// every element in one call so SQLite inserts them in a single
// transaction.

package document

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

func (e *Extension) newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <collection> [json|-]",
		Short: "Create one or more documents",
		Long: `Create a document from a JSON object, or several from a JSON array.
Reads stdin when the JSON argument is omitted or "-".

  cmsdb create pages '{"title": "Home", "route": "/"}'
  cat sites.json | cmsdb create sites

The backend assigns _id, and createdAt/updatedAt are stamped.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runCreate,
	}
}

func (e *Extension) runCreate(c *cobra.Command, args []string) error {
	coll := args[0]
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	docs, many, err := parseDocuments(arg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	if !many {
		created, err := e.db.Create(ctx, coll, docs[0])
		log.Event("document:create", "create").Collection(coll).ID(created.ID()).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("create %s: %w", coll, err))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(created)
		}
		fmt.Fprintln(cmd.Out(), created.ID())
		return nil
	}

	created, err := e.db.CreateMany(ctx, coll, docs)
	log.Event("document:create", "create_many").Collection(coll).Detail("count", len(created)).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("create %s: %w", coll, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(created)
	}
	return format.IDs(cmd.Out(), created)
}

// parseDocuments reads one object or an array of objects. many reports
// which shape was given.
func parseDocuments(arg string) (docs []store.Document, many bool, err error) {
	var raw any
	if err := cmd.ReadJSON(arg, &raw); err != nil {
		return nil, false, err
	}
	switch v := raw.(type) {
	case map[string]any:
		doc, err := store.NormalizeDocument(v)
		if err != nil {
			return nil, false, err
		}
		return []store.Document{doc}, false, nil
	case []any:
		if len(v) == 0 {
			return nil, true, fmt.Errorf("%w: empty document array", store.ErrValidation)
		}
		docs = make([]store.Document, len(v))
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("%w: element %d is not an object", store.ErrValidation, i)
			}
			if docs[i], err = store.NormalizeDocument(obj); err != nil {
				return nil, true, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return docs, true, nil
	}
	return nil, false, fmt.Errorf("%w: expected a JSON object or array", store.ErrValidation)
}
