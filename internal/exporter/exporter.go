// Package exporter writes collections out as JSON Lines, one document per
// line, so they can be re-imported into either backend.
package exporter

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jpl-au/cmsdb/internal/progress"
	"github.com/jpl-au/cmsdb/internal/store"
	"golang.org/x/crypto/blake2b"
)

// Ext is the file extension used for exported collections.
const Ext = ".jsonl"

// DefaultBatch is the number of documents read per query.
const DefaultBatch = 500

// Source is the read side of the database used by an export.
type Source interface {
	Count(ctx context.Context, coll string, f store.Filter) (int64, error)
	Find(ctx context.Context, coll string, f store.Filter, opts store.FindOptions) ([]store.Document, error)
}

// Options configures an export operation.
type Options struct {
	Filter store.Filter // Restrict exported documents
	Batch  int64        // Documents per query (0 = DefaultBatch)
	Force  bool         // Overwrite existing files
}

// Result contains the outcome of exporting one collection.
type Result struct {
	Collection string `json:"collection"`
	Exported   int64  `json:"exported"`
	Path       string `json:"path,omitempty"`
	Checksum   string `json:"checksum,omitempty"` // blake2b-256 of the file, hex
}

// Stream writes every matching document in coll to w, ordered by _id.
func Stream(ctx context.Context, w io.Writer, src Source, coll string, opts Options) (Result, error) {
	res := Result{Collection: coll}

	total, err := src.Count(ctx, coll, opts.Filter)
	if err != nil {
		return res, fmt.Errorf("counting %s: %w", coll, err)
	}
	batch := opts.Batch
	if batch <= 0 {
		batch = DefaultBatch
	}

	prog := progress.New("Exporting "+coll, total)
	defer prog.Done()

	bw := bufio.NewWriter(w)
	sort := store.Sort{{Field: store.FieldID}}
	for {
		docs, err := src.Find(ctx, coll, opts.Filter, store.FindOptions{
			Sort:  sort,
			Limit: batch,
			Skip:  res.Exported,
		})
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", coll, err)
		}
		for _, d := range docs {
			line, err := json.Marshal(encode(d))
			if err != nil {
				return res, fmt.Errorf("encoding %s/%s: %w", coll, d.ID(), err)
			}
			bw.Write(line)
			bw.WriteByte('\n')
		}
		res.Exported += int64(len(docs))
		prog.Add(len(docs))
		if int64(len(docs)) < batch {
			break
		}
	}
	return res, bw.Flush()
}

// Dir exports each collection to <dst>/<collection>.jsonl. Uses os.Root so
// collection names cannot escape dst.
func Dir(ctx context.Context, src Source, colls []string, dst string, opts Options) ([]Result, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}
	root, err := os.OpenRoot(dst)
	if err != nil {
		return nil, fmt.Errorf("opening destination root: %w", err)
	}
	defer root.Close()

	var results []Result
	for _, coll := range colls {
		name, err := store.SanitizeCollection(coll)
		if err != nil {
			return results, err
		}
		res, err := exportFile(ctx, root, src, coll, name+Ext, opts)
		if err != nil {
			return results, err
		}
		res.Path = filepath.Join(dst, name+Ext)
		results = append(results, res)
	}
	return results, nil
}

func exportFile(ctx context.Context, root *os.Root, src Source, coll, name string, opts Options) (Result, error) {
	if !opts.Force {
		if _, err := root.Stat(name); err == nil {
			return Result{Collection: coll}, fmt.Errorf("file exists: %s (use --force to overwrite)", name)
		}
	}
	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return Result{Collection: coll}, fmt.Errorf("creating file %s: %w", name, err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return Result{Collection: coll}, err
	}
	res, err := Stream(ctx, io.MultiWriter(f, h), src, coll, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	res.Checksum = hex.EncodeToString(h.Sum(nil))
	return res, err
}

// encode replaces timestamps with {"$date": ...} so they survive the
// round trip as times rather than strings.
func encode(v any) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{"$date": x.UTC().Format(store.TimeLayout)}
	case store.Document:
		return encodeMap(x)
	case map[string]any:
		return encodeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encode(e)
		}
		return out
	}
	return v
}

func encodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = encode(e)
	}
	return out
}
