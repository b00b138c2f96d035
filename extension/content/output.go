package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

// errNotFound is reported for a missing page or site id.
var errNotFound = errors.New("not found")

// Table columns for list output.
var (
	pageColumns = []string{store.FieldID, "title", "route", "siteId", "isPublished", "isDraft", store.FieldUpdatedAt}
	siteColumns = []string{store.FieldID, "name", "domain", "isActive", "isDefault"}
)

// documents converts typed results to documents for table output.
func documents(v any) ([]store.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var docs []store.Document
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// printList prints items as JSON or as a table with cols.
func printList[T any](items []T, cols []string) error {
	if items == nil {
		items = []T{}
	}
	if cmd.JSON() {
		return cmd.PrintJSON(items)
	}
	docs, err := documents(items)
	if err != nil {
		return err
	}
	return format.Table(cmd.Out(), docs, cols)
}

// printOne prints a single item as JSON, indented JSON for humans.
func printOne(v any) error {
	if cmd.JSON() {
		return cmd.PrintJSON(v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.Out(), string(b))
	return nil
}

// optionalBool returns the flag value when it was set on the command line.
func optionalBool(c *cobra.Command, name string) *bool {
	if !c.Flags().Changed(name) {
		return nil
	}
	v, _ := c.Flags().GetBool(name)
	return &v
}

// optionalString returns the flag value when it was set on the command line.
func optionalString(c *cobra.Command, name string) *string {
	if !c.Flags().Changed(name) {
		return nil
	}
	v, _ := c.Flags().GetString(name)
	return &v
}
