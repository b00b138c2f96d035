// Package diff renders line diffs between two versions of a document, used
// by "cmsdb update --diff" and the cms_update MCP tool.
package diff

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines shown before/after changes.
// When equal sections exceed 2*contextLines, they're collapsed with "...".
const contextLines = 3

// Result holds diff output.
type Result struct {
	Old    string   // old label
	New    string   // new label
	Diff   string   // plain diff text
	Fields []string // top-level fields that differ (Documents only)
}

// Changed reports whether the two sides differ.
func (r Result) Changed() bool {
	for _, line := range strings.Split(r.Diff, "\n") {
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "+ ") {
			return true
		}
	}
	return false
}

// Compute returns a line diff between old and new content.
func Compute(oldContent, newContent, oldLabel, newLabel string) Result {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	d := dmp.DiffMain(a, b, false)
	d = dmp.DiffCharsToLines(d, lines)

	return Result{
		Old:  oldLabel,
		New:  newLabel,
		Diff: format(d),
	}
}

// Documents diffs two documents rendered as indented JSON. Keys are sorted
// by the encoder so field order never shows up as a change. A nil document
// renders as "null".
func Documents(oldDoc, newDoc store.Document, oldLabel, newLabel string) (Result, error) {
	oldJSON, err := render(oldDoc)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", oldLabel, err)
	}
	newJSON, err := render(newDoc)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", newLabel, err)
	}
	r := Compute(oldJSON, newJSON, oldLabel, newLabel)
	r.Fields = Fields(oldDoc, newDoc)
	return r, nil
}

// Fields returns the sorted top-level field names that are added, removed
// or changed between two documents.
func Fields(oldDoc, newDoc store.Document) []string {
	var out []string
	for k, v := range newDoc {
		if ov, ok := oldDoc[k]; !ok || !reflect.DeepEqual(ov, v) {
			out = append(out, k)
		}
	}
	for k := range oldDoc {
		if _, ok := newDoc[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func render(doc store.Document) (string, error) {
	if doc == nil {
		return "null\n", nil
	}
	b, err := store.MarshalJSON(doc)
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// format converts diffs to unified-style text.
func format(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		// Trim trailing newline to avoid artefact empty string from Split
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				b.WriteString("- " + l + "\n")
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				b.WriteString("+ " + l + "\n")
			}
		case diffmatchpatch.DiffEqual:
			if len(lines) > 2*contextLines {
				for i := range contextLines {
					b.WriteString("  " + lines[i] + "\n")
				}
				b.WriteString("  ...\n")
				for i := len(lines) - contextLines; i < len(lines); i++ {
					b.WriteString("  " + lines[i] + "\n")
				}
			} else {
				for _, l := range lines {
					b.WriteString("  " + l + "\n")
				}
			}
		}
	}
	return b.String()
}

// Colourise adds ANSI colours to diff output.
func Colourise(d string) string {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		reset = "\033[0m"
	)

	var b strings.Builder
	for _, line := range strings.Split(d, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			b.WriteString(red + line + reset + "\n")
		case strings.HasPrefix(line, "+ "):
			b.WriteString(green + line + reset + "\n")
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// Format returns the full diff with header.
func (r Result) Format(colour bool) string {
	header := fmt.Sprintf("--- %s\n+++ %s\n", r.Old, r.New)
	if colour {
		return header + Colourise(r.Diff)
	}
	return header + r.Diff
}
