package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	env := newTestEnv(t)

	out := env.object("index", "add", "pages", "title")
	assert.Equal(t, "pages_title_idx", out["name"])
	env.equals(env.run("index", "add", "pages", "siteId,-createdAt", "--name", "pages_recent"), "pages_recent")

	var idx []map[string]any
	env.runJSON(&idx, "index", "ls", "pages")
	names := make([]any, 0, len(idx))
	for _, i := range idx {
		names = append(names, i["name"])
	}
	assert.Contains(t, names, "pages_title_idx")
	assert.Contains(t, names, "pages_recent")
	assert.Contains(t, names, "pages_route_idx", "created by init")

	env.contains(env.run("index", "ls", "sites"), "sites_domain_idx")

	env.run("index", "rm", "pages", "pages_title_idx")
	idx = nil
	env.runJSON(&idx, "index", "ls", "pages")
	for _, i := range idx {
		assert.NotEqual(t, "pages_title_idx", i["name"])
	}
}

func TestIndex_UniqueDomain(t *testing.T) {
	env := newTestEnv(t)

	// init makes sites.domain unique, so a raw create bypassing the
	// content rules still cannot duplicate a domain.
	_, err := env.runErr("create", "sites", `{"name": "Copy", "domain": "example.com"}`)
	require.Error(t, err)
	env.equals(env.run("count", "sites"), "1")
}

func TestIndex_InvalidField(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.runErr("index", "add", "pages", "bad'field")
	assert.Error(t, err)
}
