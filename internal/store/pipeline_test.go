package store_test

import (
	"testing"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePages() []store.Document {
	return []store.Document{
		{"_id": "1", "site": "a", "views": int64(10), "status": "published"},
		{"_id": "2", "site": "b", "views": int64(5), "status": "draft"},
		{"_id": "3", "site": "a", "views": 2.5, "status": "published"},
		{"_id": "4", "site": "c", "status": "published"},
	}
}

func TestParsePipelineJSON(t *testing.T) {
	p, err := store.ParsePipelineJSON([]byte(`[
		{"$match": {"status": "published"}},
		{"$group": {"_id": "$site", "pages": {"$sum": 1}, "views": {"$sum": "$views"}}},
		{"$sort": {"pages": -1}},
		{"$limit": 2}
	]`))
	require.NoError(t, err)
	require.Len(t, p, 4)
	assert.Equal(t, store.Filter{"status": "published"}, p[0].Match)
	assert.Equal(t, "$site", p[1].Group.Key)
	require.Len(t, p[1].Group.Accumulators, 2)
	assert.Equal(t, store.Accumulator{Field: "pages", Op: store.AccSum, Arg: int64(1)}, p[1].Group.Accumulators[0])
	assert.Equal(t, store.Sort{{Field: "pages", Desc: true}}, p[2].Sort)
	assert.Equal(t, int64(2), p[3].Limit)
}

func TestParsePipeline_Rejects(t *testing.T) {
	for name, src := range map[string]string{
		"unknown stage":       `[{"$lookup": {}}]`,
		"two operators":       `[{"$sort": {"a": 1}, "$limit": 1}]`,
		"group without id":    `[{"$group": {"n": {"$sum": 1}}}]`,
		"unknown accumulator": `[{"$group": {"_id": null, "n": {"$avg": "$x"}}}]`,
		"bad sort direction":  `[{"$sort": {"a": 2}}]`,
		"bad limit":           `[{"$limit": 0}]`,
		"sum of text":         `[{"$group": {"_id": null, "n": {"$sum": "x"}}}]`,
		"not json":            `{`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.ParsePipelineJSON([]byte(src))
			assert.ErrorIs(t, err, store.ErrValidation)
		})
	}
}

func TestRunPipeline_GroupSumAndCount(t *testing.T) {
	p := store.Pipeline{
		{Match: store.Filter{"status": "published"}},
		{Group: &store.Group{Key: "$site", Accumulators: []store.Accumulator{
			{Field: "pages", Op: store.AccCount},
			{Field: "views", Op: store.AccSum, Arg: "$views"},
		}}},
		{Sort: store.Sort{{Field: "_id"}}},
	}

	out, err := store.RunPipeline(samplePages(), p)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "a", out[0]["_id"])
	assert.Equal(t, int64(2), out[0]["pages"])
	assert.Equal(t, 12.5, out[0]["views"])

	assert.Equal(t, "c", out[1]["_id"])
	assert.Equal(t, int64(1), out[1]["pages"])
	assert.Equal(t, int64(0), out[1]["views"])
}

func TestRunPipeline_SingleGroup(t *testing.T) {
	p := store.Pipeline{
		{Group: &store.Group{Key: nil, Accumulators: []store.Accumulator{
			{Field: "total", Op: store.AccSum, Arg: int64(1)},
		}}},
	}
	out, err := store.RunPipeline(samplePages(), p)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0]["_id"])
	assert.Equal(t, int64(4), out[0]["total"])
}

func TestRunPipeline_SortAndLimit(t *testing.T) {
	p := store.Pipeline{
		{Sort: store.Sort{{Field: "views", Desc: true}}},
		{Limit: 2},
	}
	out, err := store.RunPipeline(samplePages(), p)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0]["_id"])
	assert.Equal(t, "2", out[1]["_id"])
}

func TestPipeline_LeadingMatch(t *testing.T) {
	p := store.Pipeline{{Match: store.Filter{"a": 1}}, {Limit: 1}}
	f, rest := p.LeadingMatch()
	assert.Equal(t, store.Filter{"a": 1}, f)
	assert.Len(t, rest, 1)

	f, rest = store.Pipeline{{Limit: 1}}.LeadingMatch()
	assert.Nil(t, f)
	assert.Len(t, rest, 1)
}
