// registry.go holds the process-wide extension registry.
//
// Extensions register from init() in the packages blank-imported by
// extension/all. Registration order is the import order there, which fixes
// the order commands appear in help output.

package extension

import (
	"slices"
	"sync"
)

var (
	mu   sync.RWMutex
	exts []Extension
)

// Register adds an extension. A duplicate name panics: registration runs
// before main() and a clash is a programming error.
func Register(e Extension) {
	mu.Lock()
	defer mu.Unlock()

	name := e.Name()
	if slices.ContainsFunc(exts, func(x Extension) bool { return x.Name() == name }) {
		panic("extension already registered: " + name)
	}
	exts = append(exts, e)
}

// All returns the registered extensions in registration order.
func All() []Extension {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(exts)
}

// Lookup returns the extension registered under name.
func Lookup(name string) (Extension, bool) {
	mu.RLock()
	defer mu.RUnlock()
	i := slices.IndexFunc(exts, func(x Extension) bool { return x.Name() == name })
	if i < 0 {
		return nil, false
	}
	return exts[i], true
}

// StorelessCommands returns the command names extensions declared as
// runnable without a database.
func StorelessCommands() []string {
	var names []string
	for _, e := range All() {
		if s, ok := e.(Storeless); ok {
			names = append(names, s.NoStoreCommands()...)
		}
	}
	return names
}

// Tools collects the MCP tools of every registered extension.
func Tools() []MCPTool {
	var tools []MCPTool
	for _, e := range All() {
		tools = append(tools, e.MCPTools()...)
	}
	return tools
}
