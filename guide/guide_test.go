package guide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	main, err := Get("")
	require.NoError(t, err)
	assert.Contains(t, main, "# cmsdb")

	filters, err := Get("filters")
	require.NoError(t, err)
	assert.Contains(t, filters, "$regex")

	_, err = Get("nope")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	assert.Equal(t, []string{"backends", "content", "filters", "transfer"}, names)
}
