package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/fgws/internal/protocol"
)

func TestChannelAddAllocatesIncrementingIDs(t *testing.T) {
	r := NewChannelRegistry()

	ch1 := r.Add(protocol.Channel{Topic: "a", Encoding: "json", SchemaName: "s", Schema: "{}"})
	ch2 := r.Add(protocol.Channel{Topic: "b", Encoding: "json", SchemaName: "s", Schema: "{}"})

	assert.Equal(t, uint32(1), ch1.ID)
	assert.Equal(t, uint32(2), ch2.ID)
}

// Re-announcing an identical, still-live descriptor must allocate a new
// id and not silently merge with the prior registration: spec.md's
// addChannel succeeds unconditionally on every call.
func TestChannelAddTwiceWithIdenticalLiveDescriptorAllocatesDistinctIDs(t *testing.T) {
	r := NewChannelRegistry()
	desc := protocol.Channel{Topic: "a", Encoding: "json", SchemaName: "s", Schema: "{}"}

	first := r.Add(desc)
	second := r.Add(desc)

	assert.NotEqual(t, first.ID, second.ID)
	require.True(t, first.SameDescriptor(second))

	_, ok := r.Get(first.ID)
	assert.True(t, ok, "first registration must remain live")
	_, ok = r.Get(second.ID)
	assert.True(t, ok, "second registration must also be live")
}

func TestChannelRemoveThenGetReportsNotFound(t *testing.T) {
	r := NewChannelRegistry()
	ch := r.Add(protocol.Channel{Topic: "a", Encoding: "json", SchemaName: "s", Schema: "{}"})

	removed, ok := r.Remove(ch.ID)
	require.True(t, ok)
	assert.Equal(t, ch.ID, removed.ID)

	_, ok = r.Get(ch.ID)
	assert.False(t, ok)

	_, ok = r.Remove(ch.ID)
	assert.False(t, ok, "removing an already-removed id reports false, not panic")
}

func TestChannelListOrderedByID(t *testing.T) {
	r := NewChannelRegistry()
	r.Add(protocol.Channel{Topic: "c", Encoding: "json", SchemaName: "s", Schema: "{}"})
	r.Add(protocol.Channel{Topic: "a", Encoding: "json", SchemaName: "s", Schema: "{}"})
	r.Add(protocol.Channel{Topic: "b", Encoding: "json", SchemaName: "s", Schema: "{}"})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint32(1), list[0].ID)
	assert.Equal(t, uint32(2), list[1].ID)
	assert.Equal(t, uint32(3), list[2].ID)
}
