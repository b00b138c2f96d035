package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	env := newBareEnv(t)

	out := env.object("init")
	assert.Equal(t, "sqlite", out["backend"])
	assert.ElementsMatch(t, []any{"pages_route_idx", "pages_siteId_idx", "sites_domain_idx"}, out["indexes"])

	site := out["site"].(map[string]any)
	assert.Equal(t, "Main Site", site["name"])
	assert.Equal(t, "example.com", site["domain"])
	assert.Equal(t, true, site["isDefault"])

	settings := out["settings"].(map[string]any)
	assert.Equal(t, "path", settings["routingType"])
	assert.Equal(t, false, settings["multiSiteEnabled"])

	assert.FileExists(t, env.dbPath)
	assert.NoFileExists(t, filepath.Join(env.dir, ".cmsdb", "config.yaml"))
}

func TestInit_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	first := env.object("site", "get")

	env.run("init")
	env.equals(env.run("count", "sites"), "1")
	env.equals(env.run("count", "settings"), "1")
	assert.Equal(t, first["_id"], env.object("site", "get")["_id"])
}

func TestInit_HumanOutput(t *testing.T) {
	env := newBareEnv(t)
	out := env.run("init")
	env.contains(out, "Initialised sqlite database")
	env.contains(out, "Default site: Main Site (example.com)")
}

func TestInit_Local(t *testing.T) {
	env := newBareEnv(t)
	out := env.run("init", "--local")
	env.contains(out, "Wrote .cmsdb/config.yaml")

	data, err := os.ReadFile(filepath.Join(env.dir, ".cmsdb", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "type: sqlite")
}
