package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSite_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	main := env.object("site", "get")

	shop := env.object("site", "create", "--name", "Shop", "--domain", "shop.example.com")
	assert.Equal(t, false, shop["isDefault"])
	assert.Equal(t, true, shop["isActive"])

	_, err := env.runErr("site", "create", "--name", "Dup", "--domain", "shop.example.com")
	assert.Error(t, err, "domains are unique")

	byDomain := env.object("site", "get", "--domain", "shop.example.com")
	assert.Equal(t, shop["_id"], byDomain["_id"])

	env.run("site", "default", shop["_id"].(string))
	assert.Equal(t, shop["_id"], env.object("site", "get")["_id"])

	var defaults []map[string]any
	env.runJSON(&defaults, "site", "ls", "--default")
	require.Len(t, defaults, 1, "exactly one default site")

	_, err = env.runErr("site", "rm", shop["_id"].(string))
	assert.Error(t, err, "the default site cannot be deleted")

	out := env.object("site", "rm", main["_id"].(string))
	assert.Equal(t, true, out["deleted"])

	var sites []map[string]any
	env.runJSON(&sites, "site", "ls")
	require.Len(t, sites, 1)
	assert.Equal(t, "Shop", sites[0]["name"])
}

func TestSite_UpdateAndDomains(t *testing.T) {
	env := newTestEnv(t)
	shop := env.object("site", "create", "--name", "Shop", "--domain", "shop.example.com", "--active=false")
	id := shop["_id"].(string)
	assert.Equal(t, false, shop["isActive"])

	_, err := env.runErr("site", "update", id, "--domain", "example.com")
	assert.Error(t, err, "domain taken by the default site")

	updated := env.object("site", "update", id, "--name", "Store", "--active")
	assert.Equal(t, "Store", updated["name"])
	assert.Equal(t, true, updated["isActive"])
	assert.Equal(t, "shop.example.com", updated["domain"])

	var mapping []map[string]any
	env.runJSON(&mapping, "site", "domains")
	assert.Len(t, mapping, 2)

	env.contains(env.run("site", "ls", "--sort", "domain"), "shop.example.com")
}

func TestSite_RmWithPages(t *testing.T) {
	env := newTestEnv(t)
	shop := env.object("site", "create", "--name", "Shop", "--domain", "shop.example.com")
	id := shop["_id"].(string)
	env.run("page", "create", "--title", "Cart", "--route", "/cart", "--site", id)

	_, err := env.runErr("site", "rm", id)
	assert.Error(t, err, "sites that own pages cannot be deleted")
}

func TestPage_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	page := env.object("page", "create", "--title", "Home", "--route", "/",
		"--sections", `[{"type": "hero", "title": "Welcome"}]`)
	id := page["_id"].(string)
	assert.Equal(t, false, page["isPublished"])
	assert.Equal(t, true, page["isDraft"])
	require.Len(t, page["sections"], 1)

	_, err := env.runErr("page", "create", "--title", "Other", "--route", "/")
	assert.Error(t, err, "routes are unique")
	_, err = env.runErr("page", "create", "--route", "/x")
	assert.Error(t, err, "title is required")

	published := env.object("page", "publish", id)
	assert.Equal(t, true, published["isPublished"])
	assert.Equal(t, false, published["isDraft"])
	assert.NotEmpty(t, published["publishedAt"])

	env.contains(env.run("page", "unpublish", id), "unpublished /")
	assert.Equal(t, false, env.object("page", "get", id)["isPublished"])

	byRoute := env.object("page", "get", "--route", "/")
	assert.Equal(t, id, byRoute["_id"])

	renamed := env.object("page", "update", id, "--title", "Start")
	assert.Equal(t, "Start", renamed["title"])
	assert.Equal(t, "/", renamed["route"])

	copy1 := env.object("page", "duplicate", id)
	assert.Equal(t, "/-copy", copy1["route"])
	assert.Equal(t, "Start (Copy)", copy1["title"])
	copy2 := env.object("page", "duplicate", id, "--title", "Again")
	assert.Equal(t, "/-copy-1", copy2["route"])

	var drafts []map[string]any
	env.runJSON(&drafts, "page", "ls", "--draft", "--sort", "route")
	require.Len(t, drafts, 2)
	assert.Equal(t, "/-copy", drafts[0]["route"])

	table := env.run("page", "ls", "--sort", "title")
	env.contains(table, "TITLE")
	env.contains(table, "Again")

	env.run("page", "rm", copy2["_id"].(string))
	_, err = env.runErr("page", "rm", copy2["_id"].(string))
	assert.Error(t, err)
	env.equals(env.run("count", "pages"), "2")
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	s := env.object("settings")
	assert.Equal(t, "path", s["routingType"])

	s = env.object("settings", "set", "--multi", "--routing", "domain")
	assert.Equal(t, true, s["multiSiteEnabled"])
	assert.Equal(t, "domain", s["routingType"])

	_, err := env.runErr("settings", "set", "--routing", "subdomain")
	assert.Error(t, err)

	s = env.object("settings", "reset")
	assert.Equal(t, false, s["multiSiteEnabled"])
	assert.Equal(t, "path", s["routingType"])
	env.equals(env.run("count", "settings"), "1")
}
