package duration_test

import (
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/duration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"5s", 5 * time.Second},
		{"1m", time.Minute},
		{"1m30s", 90 * time.Second},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 0s ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := duration.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "7x", "-5s", "1.5d", "d"} {
		_, err := duration.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "5s", duration.Format(5*time.Second))
	assert.Equal(t, "1m0s", duration.Format(time.Minute))
	assert.Equal(t, "3d", duration.Format(72*time.Hour))
	assert.Equal(t, "1w", duration.Format(7*24*time.Hour))
	assert.Equal(t, "0s", duration.Format(0))

	for _, d := range []time.Duration{time.Second, 45 * time.Second, 48 * time.Hour} {
		back, err := duration.Parse(duration.Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}
