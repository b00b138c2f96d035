// flags.go defines constants for all CLI flag names.
//
// Using constants instead of string literals prevents typos and enables
// compile-time checking when flag names are used in both Flags().Type()
// definitions and GetType() calls.
//
// Naming convention: Flag<PascalCaseName> where name matches the kebab-case
// CLI flag (e.g., "ids-only" -> FlagIDsOnly).

package extension

// Flag name constants for CLI commands.
// These are used with cobra's Flags().Type() and GetType() methods.
const (
	// Boolean flags

	FlagActive    = "active"    // Site is active
	FlagDefault   = "default"   // Site is the default
	FlagDiff      = "diff"      // Show diff output
	FlagDraft     = "draft"     // Page is a draft
	FlagDryRun    = "dry-run"   // Show what would happen
	FlagIDsOnly   = "ids-only"  // Output document ids only
	FlagKeepIDs   = "keep-ids"  // Preserve document ids on import
	FlagLocal     = "local"     // Use local config scope
	FlagMulti     = "multi"     // Multi-site mode
	FlagPublished = "published" // Page is published
	FlagUnique    = "unique"    // Unique index
	FlagUpsert    = "upsert"    // Insert when nothing matches

	// String flags

	FlagAddr        = "addr"        // Listen address
	FlagDescription = "description" // Site description
	FlagDomain      = "domain"      // Site domain
	FlagFields      = "fields"      // Comma-separated projection
	FlagFilter      = "filter"      // JSON filter document
	FlagID          = "id"          // Document id
	FlagName        = "name"        // Index or site name
	FlagRoute       = "route"       // Page route
	FlagRouting     = "routing"     // Routing type (path, domain)
	FlagSections    = "sections"    // JSON array of page sections
	FlagSite        = "site"        // Site id
	FlagSort        = "sort"        // Sort spec (e.g. "-createdAt,title")
	FlagTitle       = "title"       // Page title

	// Integer flags

	FlagBatch = "batch" // Documents per batch
	FlagLimit = "limit" // Limit number of results
	FlagSkip  = "skip"  // Skip leading results
)
