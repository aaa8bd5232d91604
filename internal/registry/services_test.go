package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/fgws/internal/protocol"
)

func TestServiceAddAllocatesIncrementingIDs(t *testing.T) {
	r := NewServiceRegistry()

	svc1 := r.Add(protocol.Service{Name: "a", Type: "t"})
	svc2 := r.Add(protocol.Service{Name: "b", Type: "t"})

	assert.Equal(t, uint32(1), svc1.ID)
	assert.Equal(t, uint32(2), svc2.ID)
}

func TestServiceAddTwiceWithIdenticalLiveDescriptorAllocatesDistinctIDs(t *testing.T) {
	r := NewServiceRegistry()
	desc := protocol.Service{Name: "a", Type: "t"}

	first := r.Add(desc)
	second := r.Add(desc)

	assert.NotEqual(t, first.ID, second.ID)
	require.True(t, first.SameDescriptor(second))

	_, ok := r.Get(first.ID)
	assert.True(t, ok)
	_, ok = r.Get(second.ID)
	assert.True(t, ok)
}

func TestServiceRemoveThenGetReportsNotFound(t *testing.T) {
	r := NewServiceRegistry()
	svc := r.Add(protocol.Service{Name: "a", Type: "t"})

	removed, ok := r.Remove(svc.ID)
	require.True(t, ok)
	assert.Equal(t, svc.ID, removed.ID)

	_, ok = r.Get(svc.ID)
	assert.False(t, ok)
}

func TestServiceListOrderedByID(t *testing.T) {
	r := NewServiceRegistry()
	r.Add(protocol.Service{Name: "c", Type: "t"})
	r.Add(protocol.Service{Name: "a", Type: "t"})
	r.Add(protocol.Service{Name: "b", Type: "t"})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint32(1), list[0].ID)
	assert.Equal(t, uint32(2), list[1].ID)
	assert.Equal(t, uint32(3), list[2].ID)
}
