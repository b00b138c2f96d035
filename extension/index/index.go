// Package index provides the index extension.
// Registers the "index" command with add, rm and ls subcommands.
//
// Indexes are created identically on both backends: SQLite builds an
// expression index over the JSON field, MongoDB a native one.
package index

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the index extension.
type Extension struct {
	db *database.Database
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "index".
func (e *Extension) Name() string { return "index" }

// Init keeps the shared facade.
func (e *Extension) Init(ctx extension.Context) error {
	e.db = ctx.Database()
	return nil
}

// Commands returns the index command tree.
func (e *Extension) Commands() []*cobra.Command {
	c := &cobra.Command{
		Use:   "index",
		Short: "Manage collection indexes",
	}
	c.AddCommand(e.newAddCmd(), e.newRmCmd(), e.newLsCmd())
	return []*cobra.Command{c}
}

// MCPTools returns nil - indexes are an administrative concern.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

func (e *Extension) newAddCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "add <collection> <fields>",
		Short: "Create an index",
		Long: `Create an index over comma-separated fields. Prefix a field with -
for descending order. The default name is <collection>_<fields>_idx.
Creating an index that already exists is a no-op.

  cmsdb index add pages route
  cmsdb index add sites domain --unique
  cmsdb index add pages siteId,-createdAt --name pages_recent`,
		Args: cobra.ExactArgs(2),
		RunE: e.runAdd,
	}
	c.Flags().Bool(extension.FlagUnique, false, "Reject duplicate values")
	c.Flags().String(extension.FlagName, "", "Index name")
	return c
}

func (e *Extension) runAdd(c *cobra.Command, args []string) error {
	coll := args[0]
	unique, _ := c.Flags().GetBool(extension.FlagUnique)
	name, _ := c.Flags().GetString(extension.FlagName)

	keys, err := store.ParseSort(args[1])
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	created, err := e.db.CreateIndex(ctx, coll, store.IndexSpec{Keys: keys, Unique: unique, Name: name})
	log.Event("index:add", "create_index").Collection(coll).Detail("name", created).Detail("unique", unique).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("index add %s: %w", coll, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]string{"collection": coll, "name": created})
	}
	fmt.Fprintln(cmd.Out(), created)
	return nil
}

func (e *Extension) newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <collection> <name>",
		Short: "Drop an index",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runRm,
	}
}

func (e *Extension) runRm(c *cobra.Command, args []string) error {
	coll, name := args[0], args[1]

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	err := e.db.DropIndex(ctx, coll, name)
	log.Event("index:rm", "drop_index").Collection(coll).Detail("name", name).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("index rm %s: %w", name, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]string{"collection": coll, "dropped": name})
	}
	fmt.Fprintf(cmd.Out(), "dropped %s\n", name)
	return nil
}

func (e *Extension) newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <collection>",
		Short: "List indexes",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runLs,
	}
}

func (e *Extension) runLs(c *cobra.Command, args []string) error {
	coll := args[0]

	ctx, cancel := cmd.Context(c.Context())
	defer cancel()
	idx, err := e.db.ListIndexes(ctx, coll)
	log.Event("index:ls", "list_indexes").Collection(coll).Detail("count", len(idx)).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("index ls %s: %w", coll, err))
	}
	if cmd.JSON() {
		if idx == nil {
			idx = []store.IndexInfo{}
		}
		return cmd.PrintJSON(idx)
	}
	return format.Indexes(cmd.Out(), idx)
}
