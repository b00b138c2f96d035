// transfer.go implements "cmsdb export" and "cmsdb import".
//
// Collections move as JSON Lines files, one document per line, which makes
// it possible to copy content between the SQLite and MongoDB backends.
// Timestamps are written as {"$date": ...} so they come back as times.

package core

import (
	"fmt"
	"os"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/exporter"
	"github.com/jpl-au/cmsdb/internal/importer"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

// defaultCollections are exported when none are named.
var defaultCollections = []string{cms.CollectionPages, cms.CollectionSites, cms.CollectionSettings}

var errStdinCollection = fmt.Errorf("%w: a collection name is required with \"-\"", store.ErrValidation)

func (e *Extension) newExportCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "export <dir|-> [collection...]",
		Short: "Export collections as JSON Lines",
		Long: `Writes each collection to <dir>/<collection>.jsonl, one document per line.
Without collection names the pages, sites and settings collections are
exported. Existing files are kept unless --force is given.

Use "-" as the destination to stream a single collection to stdout:
  cmsdb export ./backup
  cmsdb export - pages --filter '{"isPublished":true}' > live.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: e.runExport,
	}
	c.Flags().String(extension.FlagFilter, "", "JSON filter applied to every collection")
	c.Flags().Int64(extension.FlagBatch, exporter.DefaultBatch, "Documents read per query")
	return c
}

func (e *Extension) runExport(c *cobra.Command, args []string) error {
	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	dst, colls := args[0], args[1:]
	filterArg, _ := c.Flags().GetString(extension.FlagFilter)
	batch, _ := c.Flags().GetInt64(extension.FlagBatch)
	filter, err := cmd.ParseFilter(filterArg)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	opts := exporter.Options{Filter: filter, Batch: batch, Force: cmd.Force()}
	db := e.ctx.Database()

	if dst == "-" {
		if len(colls) != 1 {
			return cmd.PrintJSONError(errStdinCollection)
		}
		res, err := exporter.Stream(ctx, cmd.Out(), db, colls[0], opts)
		log.Event("core:export", "export").Collection(colls[0]).Detail("count", res.Exported).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("export: %w", err))
		}
		return nil
	}

	if len(colls) == 0 {
		colls = defaultCollections
	}
	results, err := exporter.Dir(ctx, db, colls, dst, opts)
	for _, r := range results {
		log.Event("core:export", "export").Collection(r.Collection).Detail("count", r.Exported).Detail("path", r.Path).Write(nil)
	}
	if err != nil {
		log.Event("core:export", "export").Detail("dst", dst).Write(err)
		return cmd.PrintJSONError(fmt.Errorf("export: %w", err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(results)
	}
	for _, r := range results {
		fmt.Fprintf(cmd.Out(), "Exported %d %s -> %s\n", r.Exported, r.Collection, r.Path)
	}
	return nil
}

func (e *Extension) newImportCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "import <dir|file|-> [collection]",
		Short: "Import collections from JSON Lines",
		Long: `Loads documents written by "cmsdb export".

A directory imports every *.jsonl file inside it, each into the collection
named by the file. A single file imports into the named collection, or the
one named by the file. "-" reads stdin and needs a collection name.

Documents get new ids unless --keep-ids is given, which upserts each one
under its exported _id. Ids only carry over between the same backend.

  cmsdb import ./backup
  cmsdb import live.jsonl pages --dry-run`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runImport,
	}
	c.Flags().Bool(extension.FlagKeepIDs, false, "Upsert documents under their exported _id")
	c.Flags().Bool(extension.FlagDryRun, false, "Validate without writing")
	c.Flags().Int(extension.FlagBatch, importer.DefaultBatch, "Documents written per batch")
	return c
}

func (e *Extension) runImport(c *cobra.Command, args []string) error {
	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	keep, _ := c.Flags().GetBool(extension.FlagKeepIDs)
	dry, _ := c.Flags().GetBool(extension.FlagDryRun)
	batch, _ := c.Flags().GetInt(extension.FlagBatch)
	opts := importer.Options{KeepIDs: keep, DryRun: dry, Batch: batch}
	db := e.ctx.Database()

	src, coll := args[0], ""
	if len(args) == 2 {
		coll = args[1]
	}

	var (
		results []importer.Result
		err     error
	)
	switch {
	case src == "-":
		if coll == "" {
			return cmd.PrintJSONError(errStdinCollection)
		}
		var res importer.Result
		res, err = importer.Stream(ctx, cmd.In(), db, coll, opts)
		results = append(results, res)
	case isDir(src):
		if coll != "" {
			return cmd.PrintJSONError(fmt.Errorf("%w: a collection name cannot be used with a directory", store.ErrValidation))
		}
		results, err = importer.Dir(ctx, db, src, opts)
	default:
		var res importer.Result
		res, err = importer.File(ctx, db, src, coll, opts)
		results = append(results, res)
	}

	for _, r := range results {
		log.Event("core:import", "import").Collection(r.Collection).
			Detail("count", r.Imported).Detail("dry_run", r.DryRun).Write(nil)
	}
	if err != nil {
		log.Event("core:import", "import").Detail("src", src).Write(err)
		return cmd.PrintJSONError(fmt.Errorf("import: %w", err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(results)
	}
	verb := "Imported"
	if dry {
		verb = "Would import"
	}
	for _, r := range results {
		fmt.Fprintf(cmd.Out(), "%s %d %s\n", verb, r.Imported, r.Collection)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
