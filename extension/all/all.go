// Package all imports all core cmsdb extensions.
// Import this package to register all built-in commands.
package all

import (
	// Core extensions - each registers itself via init()
	_ "github.com/jpl-au/cmsdb/extension/content"
	_ "github.com/jpl-au/cmsdb/extension/core"
	_ "github.com/jpl-au/cmsdb/extension/document"
	_ "github.com/jpl-au/cmsdb/extension/index"
)
