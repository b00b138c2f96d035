// Package importer loads JSON Lines files produced by the exporter back into
// a collection.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jpl-au/cmsdb/internal/progress"
	"github.com/jpl-au/cmsdb/internal/store"
)

// Ext is the file extension recognised when importing a directory.
const Ext = ".jsonl"

// DefaultBatch is the number of documents written per CreateMany.
const DefaultBatch = 500

// maxLine bounds a single encoded document.
const maxLine = 16 << 20

// Sink is the write side of the database used by an import.
type Sink interface {
	CreateMany(ctx context.Context, coll string, docs []store.Document) ([]store.Document, error)
	UpdateByID(ctx context.Context, coll, id string, patch store.Patch, opts store.UpdateOptions) (store.Document, error)
}

// Options configures an import operation.
type Options struct {
	KeepIDs bool // Upsert each document under its exported _id
	DryRun  bool // Parse and validate without writing
	Batch   int  // Documents per write (0 = DefaultBatch)
}

// Result contains the outcome of importing one collection.
type Result struct {
	Collection string `json:"collection"`
	Imported   int64  `json:"imported"`
	Path       string `json:"path,omitempty"`
	DryRun     bool   `json:"dryRun,omitempty"`
}

// Stream imports every line of r into coll. Blank lines are skipped. Without
// KeepIDs each document gets a fresh id from the backend.
func Stream(ctx context.Context, r io.Reader, sink Sink, coll string, opts Options) (Result, error) {
	res := Result{Collection: coll, DryRun: opts.DryRun}
	batch := opts.Batch
	if batch <= 0 {
		batch = DefaultBatch
	}

	prog := progress.New("Importing "+coll, 0)
	defer prog.Done()

	var pending []store.Document
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if !opts.DryRun {
			if _, err := sink.CreateMany(ctx, coll, pending); err != nil {
				return err
			}
		}
		res.Imported += int64(len(pending))
		prog.Add(len(pending))
		pending = nil
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		doc, err := Decode(raw)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		if opts.KeepIDs {
			id := doc.ID()
			if id == "" {
				return res, fmt.Errorf("line %d: %w: document has no _id", line, store.ErrValidation)
			}
			delete(doc, store.FieldID)
			if !opts.DryRun {
				if _, err := sink.UpdateByID(ctx, coll, id, store.Patch(doc), store.UpdateOptions{Upsert: true}); err != nil {
					return res, fmt.Errorf("line %d: %w", line, err)
				}
			}
			res.Imported++
			prog.Add(1)
			continue
		}

		delete(doc, store.FieldID)
		pending = append(pending, doc)
		if len(pending) >= batch {
			if err := flush(); err != nil {
				return res, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading %s: %w", coll, err)
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("line %d: %w", line, err)
	}
	return res, nil
}

// File imports one file. An empty coll takes the collection name from the
// file name.
func File(ctx context.Context, sink Sink, path, coll string, opts Options) (Result, error) {
	if coll == "" {
		coll = CollectionFor(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{Collection: coll}, err
	}
	defer f.Close()
	res, err := Stream(ctx, f, sink, coll, opts)
	res.Path = path
	return res, err
}

// Dir imports every *.jsonl file directly inside src, each into the
// collection named by the file. Uses os.Root for safe access within src.
func Dir(ctx context.Context, sink Sink, src string, opts Options) ([]Result, error) {
	root, err := os.OpenRoot(src)
	if err != nil {
		return nil, fmt.Errorf("opening source root: %w", err)
	}
	defer root.Close()

	names, err := scanRoot(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", src, err)
	}

	var results []Result
	for _, name := range names {
		f, err := root.Open(name)
		if err != nil {
			return results, fmt.Errorf("opening %s: %w", name, err)
		}
		res, err := Stream(ctx, f, sink, CollectionFor(name), opts)
		f.Close()
		res.Path = filepath.Join(src, name)
		if err != nil {
			return results, fmt.Errorf("%s: %w", name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// CollectionFor derives a collection name from an export file path.
func CollectionFor(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

// scanRoot lists the export files at the top of root, sorted.
func scanRoot(root *os.Root) ([]string, error) {
	f, err := root.Open(".")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != Ext {
			continue
		}
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Decode parses one exported line into a normalised document, turning
// {"$date": ...} values back into times.
func Decode(raw []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", store.ErrValidation, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", store.ErrValidation)
	}
	v, err := decode(m)
	if err != nil {
		return nil, err
	}
	return store.NormalizeDocument(v.(map[string]any))
}

func decode(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if s, ok := x["$date"].(string); ok && len(x) == 1 {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid $date %q", store.ErrValidation, s)
			}
			return t, nil
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			d, err := decode(e)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			d, err := decode(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}
	return v, nil
}
