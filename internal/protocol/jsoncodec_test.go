package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMsgRoundTripPreservesExtraFields(t *testing.T) {
	raw := []byte(`{"op":"status","level":1,"message":"overload","id":"abc","futureField":"keep-me"}`)

	var m StatusMsg
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, StatusWarning, m.Level)
	assert.Equal(t, "overload", m.Message)
	require.Contains(t, m.Extra, "futureField")

	reencoded, err := json.Marshal(m)
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(reencoded, &roundTripped))
	assert.Equal(t, "keep-me", roundTripped["futureField"])
	assert.Equal(t, "status", roundTripped["op"])
}

func TestAdvertiseMsgMarshalSetsOpUnconditionally(t *testing.T) {
	m := AdvertiseMsg{Channels: []Channel{{ID: 1, Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"}}}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	op, err := PeekOp(data)
	require.NoError(t, err)
	assert.Equal(t, OpAdvertise, op)
}

func TestPeekOpRejectsMissingOp(t *testing.T) {
	_, err := PeekOp([]byte(`{"foo":"bar"}`))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrParse, perr.Kind)
}

func TestPeekOpRejectsMalformedJSON(t *testing.T) {
	_, err := PeekOp([]byte(`not json`))
	require.Error(t, err)
}

func TestChannelUnmarshalPreservesUnknownFieldsAcrossRoundTrip(t *testing.T) {
	raw := []byte(`{"id":1,"topic":"t","encoding":"json","schemaName":"s","schema":"{}","newProtocolField":42}`)

	var ch Channel
	require.NoError(t, json.Unmarshal(raw, &ch))
	require.Contains(t, ch.Extra, "newProtocolField")

	reencoded, err := json.Marshal(ch)
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(reencoded, &roundTripped))
	assert.Equal(t, float64(42), roundTripped["newProtocolField"])
}

func TestCapabilitySetJSONRoundTrip(t *testing.T) {
	set := NewCapabilitySet(CapTime, CapServices, CapAssets)

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded CapabilitySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Has(CapTime))
	assert.True(t, decoded.Has(CapServices))
	assert.True(t, decoded.Has(CapAssets))
	assert.False(t, decoded.Has(CapClientPublish))
}

func TestCapabilitySetListIsSortedAndDeterministic(t *testing.T) {
	set := NewCapabilitySet(CapTime, CapAssets, CapClientPublish)

	list1 := set.List()
	list2 := set.List()
	assert.Equal(t, list1, list2)

	for i := 1; i < len(list1); i++ {
		assert.True(t, list1[i-1] < list1[i])
	}
}

func TestChannelSameDescriptorIgnoresID(t *testing.T) {
	a := Channel{ID: 1, Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"}
	b := Channel{ID: 2, Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"}
	c := Channel{ID: 1, Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{different}"}

	assert.True(t, a.SameDescriptor(b))
	assert.False(t, a.SameDescriptor(c))
}
