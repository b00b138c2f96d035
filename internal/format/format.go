// Package format provides output formatting utilities for CLI display.
//
// Centralises formatting logic so that command implementations focus on
// database calls while this package handles presentation concerns like
// column alignment and value rendering.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// MaxWidth truncates table cells wider than this.
const MaxWidth = 40

// Value renders a single document value for a table cell.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case time.Time:
		return x.UTC().Format(store.TimeLayout)
	case map[string]any, []any, store.Document:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// Columns returns the top-level fields present in docs, sorted, with _id
// first and the timestamp fields last.
func Columns(docs []store.Document) []string {
	seen := map[string]bool{}
	var fields []string
	for _, d := range docs {
		for k := range d {
			if seen[k] {
				continue
			}
			seen[k] = true
			switch k {
			case store.FieldID, store.FieldCreatedAt, store.FieldUpdatedAt:
				continue
			}
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)

	cols := []string{store.FieldID}
	cols = append(cols, fields...)
	for _, k := range []string{store.FieldCreatedAt, store.FieldUpdatedAt} {
		if seen[k] {
			cols = append(cols, k)
		}
	}
	return cols
}

// Table prints docs as aligned columns. An empty cols derives them with
// Columns.
func Table(w io.Writer, docs []store.Document, cols []string) error {
	if len(docs) == 0 {
		return nil
	}
	if len(cols) == 0 {
		cols = Columns(docs)
	}

	rows := make([][]string, len(docs))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for r, d := range docs {
		row := make([]string, len(cols))
		for i, c := range cols {
			v, ok := store.Lookup(d, c)
			if !ok {
				v = nil
			}
			row[i] = truncate(Value(v), MaxWidth)
			widths[i] = max(widths[i], len(row[i]))
		}
		rows[r] = row
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c)
	}
	writeRow(w, header, widths)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
	return nil
}

func writeRow(w io.Writer, row []string, widths []int) {
	var b strings.Builder
	for i, cell := range row {
		if i == len(row)-1 {
			b.WriteString(cell)
			break
		}
		fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Document prints one document as indented JSON.
func Document(w io.Writer, doc store.Document) error {
	b, err := store.MarshalJSON(doc)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	return nil
}

// IDs prints just document ids, one per line.
func IDs(w io.Writer, docs []store.Document) error {
	for _, d := range docs {
		fmt.Fprintln(w, d.ID())
	}
	return nil
}

// Values prints distinct values, one per line.
func Values(w io.Writer, vals []any) error {
	for _, v := range vals {
		fmt.Fprintln(w, Value(v))
	}
	return nil
}

// Indexes prints index descriptions in long format.
func Indexes(w io.Writer, idx []store.IndexInfo) error {
	if len(idx) == 0 {
		return nil
	}
	maxName := 4 // minimum "NAME"
	for _, i := range idx {
		maxName = max(maxName, len(i.Name))
	}
	fmt.Fprintf(w, "%-*s  %-6s  %s\n", maxName, "NAME", "UNIQUE", "KEYS")
	for _, i := range idx {
		unique := "no"
		if i.Unique {
			unique = "yes"
		}
		fmt.Fprintf(w, "%-*s  %-6s  %s\n", maxName, i.Name, unique, strings.Join(i.Keys, ", "))
	}
	return nil
}

// KeyValues prints a map as sorted "key: value" lines.
func KeyValues(w io.Writer, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, m[k])
	}
	return nil
}
