package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeSuppressesRedelivery(t *testing.T) {
	d := NewDedupe()

	assert.False(t, d.Seen("msg-1"))
	assert.True(t, d.Seen("msg-1"))
	assert.True(t, d.Seen("msg-1"))

	assert.False(t, d.Seen("msg-2"))
	assert.Equal(t, 2, d.Len())
}

func TestDedupeEmptyIDNeverSuppressed(t *testing.T) {
	// Messages without an ID cannot be deduplicated safely.
	d := NewDedupe()

	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
	assert.Equal(t, 0, d.Len())
}
