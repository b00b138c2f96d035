package diff

import (
	"strings"
	"testing"

	"github.com/jpl-au/cmsdb/internal/store"
)

func TestDocuments(t *testing.T) {
	tests := []struct {
		name    string
		old     store.Document
		new     store.Document
		changed bool
		want    []string
		notWant []string
	}{
		{
			name:    "field changed",
			old:     store.Document{"_id": "1", "title": "Home", "status": "draft"},
			new:     store.Document{"_id": "1", "title": "Home", "status": "published"},
			changed: true,
			want:    []string{`- `, `"status": "draft"`, `+ `, `"status": "published"`, `  `, `"title": "Home"`},
		},
		{
			name:    "field added",
			old:     store.Document{"_id": "1"},
			new:     store.Document{"_id": "1", "views": int64(3)},
			changed: true,
			want:    []string{`"views": 3`},
		},
		{
			name:    "identical",
			old:     store.Document{"_id": "1", "a": "x", "b": "y"},
			new:     store.Document{"b": "y", "_id": "1", "a": "x"},
			changed: false,
			notWant: []string{"- ", "+ "},
		},
		{
			name:    "created",
			old:     nil,
			new:     store.Document{"_id": "9"},
			changed: true,
			want:    []string{"- null", `"_id": "9"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Documents(tt.old, tt.new, "before", "after")
			if err != nil {
				t.Fatalf("Documents() error = %v", err)
			}
			if r.Changed() != tt.changed {
				t.Errorf("Changed() = %v, want %v\n%s", r.Changed(), tt.changed, r.Diff)
			}
			for _, s := range tt.want {
				if !strings.Contains(r.Diff, s) {
					t.Errorf("diff missing %q\n%s", s, r.Diff)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(r.Diff, s) {
					t.Errorf("diff contains %q\n%s", s, r.Diff)
				}
			}
		})
	}
}

func TestFields(t *testing.T) {
	old := store.Document{"title": "Home", "route": "/", "seo": map[string]any{"title": "A"}}
	new := store.Document{"title": "Home", "seo": map[string]any{"title": "B"}, "views": int64(1)}
	got := Fields(old, new)
	want := []string{"route", "seo", "views"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
	if len(Fields(old, old)) != 0 {
		t.Error("identical documents report changed fields")
	}
}

func TestCompute_CollapsesContext(t *testing.T) {
	var oldLines, newLines []string
	for i := range 20 {
		line := strings.Repeat("x", i+1)
		oldLines = append(oldLines, line)
		newLines = append(newLines, line)
	}
	newLines[19] = "changed"

	r := Compute(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n", "a", "b")
	if !strings.Contains(r.Diff, "  ...\n") {
		t.Errorf("long equal run not collapsed:\n%s", r.Diff)
	}
	if !strings.Contains(r.Diff, "+ changed\n") {
		t.Errorf("missing insertion:\n%s", r.Diff)
	}
}

func TestFormat(t *testing.T) {
	r := Result{Old: "a", New: "b", Diff: "- x\n+ y\n"}

	plain := r.Format(false)
	if !strings.HasPrefix(plain, "--- a\n+++ b\n") {
		t.Errorf("Format(false) header = %q", plain)
	}
	coloured := r.Format(true)
	if !strings.Contains(coloured, "\033[31m- x") || !strings.Contains(coloured, "\033[32m+ y") {
		t.Errorf("Format(true) = %q", coloured)
	}
}
