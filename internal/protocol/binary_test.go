package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageDataRoundTrip(t *testing.T) {
	m := MessageData{SubscriptionID: 7, TimestampNanos: 1234567890, Data: []byte("hello")}

	frame := EncodeMessageData(m)
	assert.Equal(t, byte(OpMessageData), frame[0])

	decoded, err := DecodeMessageData(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestPatchSubscriptionIDRewritesInPlaceWithoutReencoding(t *testing.T) {
	frame := EncodeMessageData(MessageData{SubscriptionID: 1, TimestampNanos: 99, Data: []byte("x")})
	payload := append([]byte(nil), frame[13:]...)

	PatchSubscriptionID(frame, 42)

	decoded, err := DecodeMessageData(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.SubscriptionID)
	assert.Equal(t, uint64(99), decoded.TimestampNanos)
	assert.Equal(t, payload, decoded.Data)
}

func TestDecodeMessageDataRejectsShortFrame(t *testing.T) {
	_, err := DecodeMessageData([]byte{1, 2, 3})
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrParse, perr.Kind)
}

func TestTimeFrameRoundTrip(t *testing.T) {
	frame := EncodeTime(TimeFrame{TimestampNanos: 42})
	assert.Equal(t, byte(OpTime), frame[0])

	decoded, err := DecodeTime(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, uint64(42), decoded.TimestampNanos)
}

func TestServiceCallResponseRoundTrip(t *testing.T) {
	r := ServiceCallResponse{ServiceID: 5, CallID: 9, Encoding: "json", Payload: []byte(`{"ok":true}`)}

	frame := EncodeServiceCallResponse(r)
	assert.Equal(t, byte(OpServiceCallResp), frame[0])

	decoded, err := DecodeServiceCallResponse(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestFetchAssetResponseRoundTripSuccess(t *testing.T) {
	r := FetchAssetResponse{RequestID: 3, Status: FetchAssetSuccess, Data: []byte("asset-bytes")}

	frame := EncodeFetchAssetResponse(r)
	decoded, err := DecodeFetchAssetResponse(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, r.RequestID, decoded.RequestID)
	assert.Equal(t, r.Status, decoded.Status)
	assert.Equal(t, r.Data, decoded.Data)
}

func TestFetchAssetResponseRoundTripError(t *testing.T) {
	r := FetchAssetResponse{RequestID: 3, Status: FetchAssetError, ErrorMsg: "not found"}

	frame := EncodeFetchAssetResponse(r)
	decoded, err := DecodeFetchAssetResponse(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, r.RequestID, decoded.RequestID)
	assert.Equal(t, r.Status, decoded.Status)
	assert.Equal(t, r.ErrorMsg, decoded.ErrorMsg)
	assert.Empty(t, decoded.Data)
}

func TestClientMessageDataRoundTrip(t *testing.T) {
	m := ClientMessageData{ChannelID: 11, Data: []byte("payload")}

	frame := EncodeClientMessageData(m)
	assert.Equal(t, byte(OpClientMessageData), frame[0])

	decoded, err := DecodeClientMessageData(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestServiceCallRequestRoundTrip(t *testing.T) {
	r := ServiceCallRequest{ServiceID: 2, CallID: 4, Encoding: "json", Payload: []byte(`{"a":1}`)}

	frame := EncodeServiceCallRequest(r)
	assert.Equal(t, byte(OpServiceCallReq), frame[0])

	decoded, err := DecodeServiceCallRequest(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestDecodeServerBinaryDispatchesByOpcode(t *testing.T) {
	frame := EncodeMessageData(MessageData{SubscriptionID: 1, TimestampNanos: 2, Data: []byte("x")})

	op, msg, err := DecodeServerBinary(frame)
	require.NoError(t, err)
	assert.Equal(t, OpMessageData, op)
	_, ok := msg.(MessageData)
	assert.True(t, ok)
}

func TestDecodeServerBinaryUnknownOpcode(t *testing.T) {
	_, _, err := DecodeServerBinary([]byte{0xFF, 0, 0, 0})
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrUnknownOpcode, perr.Kind)
}

func TestDecodeClientBinaryDispatchesByOpcode(t *testing.T) {
	frame := EncodeServiceCallRequest(ServiceCallRequest{ServiceID: 1, CallID: 2, Encoding: "json", Payload: []byte("p")})

	op, msg, err := DecodeClientBinary(frame)
	require.NoError(t, err)
	assert.Equal(t, OpServiceCallReq, op)
	_, ok := msg.(ServiceCallRequest)
	assert.True(t, ok)
}

func TestDecodeBinaryEmptyFrame(t *testing.T) {
	_, _, err := DecodeServerBinary(nil)
	require.Error(t, err)
	_, _, err = DecodeClientBinary(nil)
	require.Error(t, err)
}
