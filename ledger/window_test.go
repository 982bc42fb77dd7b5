package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/pos-ledger/ledger"
)

func TestWindow(t *testing.T) {
	end := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	w := ledger.WindowEndingAt(end, 24*time.Hour)

	assert.Equal(t, end.Add(-24*time.Hour), w.Start)
	assert.True(t, w.Contains(w.Start), "start is inclusive")
	assert.True(t, w.Contains(w.End), "end is inclusive")
	assert.False(t, w.Contains(end.Add(time.Nanosecond)))
	assert.NoError(t, w.Validate())

	inverted := ledger.Window{Start: end, End: end.Add(-time.Second)}
	assert.ErrorIs(t, inverted.Validate(), ledger.ErrInvalidWindow)

	manila := time.FixedZone("PHT", 8*3600)
	local := ledger.Window{Start: end.In(manila), End: end.In(manila)}
	assert.Equal(t, time.UTC, local.UTC().Start.Location())
	assert.True(t, local.UTC().Start.Equal(end))
}
