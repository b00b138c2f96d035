package progress_test

import (
	"bytes"
	"testing"

	"github.com/jpl-au/cmsdb/internal/progress"
	"github.com/stretchr/testify/assert"
)

func TestProgress_SilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := progress.NewWriter(&buf, "Exporting", 500)
	p.Add(200)
	p.Add(300)
	p.Done()

	assert.Equal(t, int64(500), p.Count())
	assert.Empty(t, buf.String(), "nothing is drawn when the writer is not a terminal")
}
