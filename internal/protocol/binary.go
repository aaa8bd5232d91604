package protocol

import (
	"encoding/binary"
	"fmt"
)

// Binary frames are little-endian throughout: a one-byte opcode followed
// by a fixed-width header and then an opaque payload. The server- and
// client-direction opcode spaces each reuse byte values 0x01/0x02 with
// different layouts; callers must know which direction they're decoding.

// MessageData is the server->client binary frame carrying one published
// message on a subscription.
type MessageData struct {
	SubscriptionID uint32
	TimestampNanos uint64
	Data           []byte
}

// EncodeMessageData serializes a MessageData frame. The subscription id
// is written last-patched by callers that pre-assemble one buffer and
// fan it out to many subscribers; see the server's broadcast path.
func EncodeMessageData(m MessageData) []byte {
	buf := make([]byte, 1+4+8+len(m.Data))
	buf[0] = byte(OpMessageData)
	binary.LittleEndian.PutUint32(buf[1:5], m.SubscriptionID)
	binary.LittleEndian.PutUint64(buf[5:13], m.TimestampNanos)
	copy(buf[13:], m.Data)
	return buf
}

// SubscriptionIDOffset is the byte offset of the subscriptionId field
// within an encoded MessageData frame, used to patch a pre-assembled
// buffer per recipient without re-encoding the whole frame.
const SubscriptionIDOffset = 1

// PatchSubscriptionID rewrites the subscription id in place on a buffer
// previously produced by EncodeMessageData.
func PatchSubscriptionID(buf []byte, subscriptionID uint32) {
	binary.LittleEndian.PutUint32(buf[SubscriptionIDOffset:SubscriptionIDOffset+4], subscriptionID)
}

// DecodeMessageData parses a server->client MessageData frame. data must
// not include the leading opcode byte.
func DecodeMessageData(data []byte) (MessageData, error) {
	if len(data) < 12 {
		return MessageData{}, NewError(ErrParse, "messageData frame shorter than header")
	}
	return MessageData{
		SubscriptionID: binary.LittleEndian.Uint32(data[0:4]),
		TimestampNanos: binary.LittleEndian.Uint64(data[4:12]),
		Data:           data[12:],
	}, nil
}

// TimeFrame is the server->client binary frame used when capability
// "time" is enabled, conveying the server's notion of current time.
type TimeFrame struct {
	TimestampNanos uint64
}

func EncodeTime(t TimeFrame) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(OpTime)
	binary.LittleEndian.PutUint64(buf[1:9], t.TimestampNanos)
	return buf
}

func DecodeTime(data []byte) (TimeFrame, error) {
	if len(data) < 8 {
		return TimeFrame{}, NewError(ErrParse, "time frame shorter than header")
	}
	return TimeFrame{TimestampNanos: binary.LittleEndian.Uint64(data[0:8])}, nil
}

// ServiceCallResponse is the server->client binary frame returning the
// successful result of a service call.
type ServiceCallResponse struct {
	ServiceID uint32
	CallID    uint32
	Encoding  string
	Payload   []byte
}

func EncodeServiceCallResponse(r ServiceCallResponse) []byte {
	encBytes := []byte(r.Encoding)
	buf := make([]byte, 1+4+4+4+len(encBytes)+len(r.Payload))
	off := 0
	buf[off] = byte(OpServiceCallResp)
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], r.ServiceID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], r.CallID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(encBytes)))
	off += 4
	off += copy(buf[off:], encBytes)
	copy(buf[off:], r.Payload)
	return buf
}

func DecodeServiceCallResponse(data []byte) (ServiceCallResponse, error) {
	if len(data) < 12 {
		return ServiceCallResponse{}, NewError(ErrParse, "serviceCallResponse frame shorter than header")
	}
	serviceID := binary.LittleEndian.Uint32(data[0:4])
	callID := binary.LittleEndian.Uint32(data[4:8])
	encLen := binary.LittleEndian.Uint32(data[8:12])
	if uint64(12+encLen) > uint64(len(data)) {
		return ServiceCallResponse{}, NewError(ErrParse, "serviceCallResponse encoding length exceeds frame")
	}
	enc := string(data[12 : 12+encLen])
	payload := data[12+encLen:]
	return ServiceCallResponse{ServiceID: serviceID, CallID: callID, Encoding: enc, Payload: payload}, nil
}

// FetchAssetResponse is the server->client binary frame replying to a
// fetchAsset request, either with the asset bytes (Status == success) or
// an error message (Status == error, Data unused).
type FetchAssetResponse struct {
	RequestID uint32
	Status    FetchAssetStatus
	ErrorMsg  string
	Data      []byte
}

func EncodeFetchAssetResponse(r FetchAssetResponse) []byte {
	if r.Status == FetchAssetSuccess {
		buf := make([]byte, 1+4+1+4+len(r.Data))
		off := 0
		buf[off] = byte(OpFetchAssetResp)
		off++
		binary.LittleEndian.PutUint32(buf[off:off+4], r.RequestID)
		off += 4
		buf[off] = byte(r.Status)
		off++
		binary.LittleEndian.PutUint32(buf[off:off+4], 0)
		off += 4
		copy(buf[off:], r.Data)
		return buf
	}
	errBytes := []byte(r.ErrorMsg)
	buf := make([]byte, 1+4+1+4+len(errBytes))
	off := 0
	buf[off] = byte(OpFetchAssetResp)
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], r.RequestID)
	off += 4
	buf[off] = byte(r.Status)
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(errBytes)))
	off += 4
	copy(buf[off:], errBytes)
	return buf
}

func DecodeFetchAssetResponse(data []byte) (FetchAssetResponse, error) {
	if len(data) < 9 {
		return FetchAssetResponse{}, NewError(ErrParse, "fetchAssetResponse frame shorter than header")
	}
	requestID := binary.LittleEndian.Uint32(data[0:4])
	status := FetchAssetStatus(data[4])
	errLen := binary.LittleEndian.Uint32(data[5:9])
	rest := data[9:]
	switch status {
	case FetchAssetSuccess:
		return FetchAssetResponse{RequestID: requestID, Status: status, Data: rest}, nil
	case FetchAssetError:
		if uint64(errLen) > uint64(len(rest)) {
			return FetchAssetResponse{}, NewError(ErrParse, "fetchAssetResponse error message length exceeds frame")
		}
		return FetchAssetResponse{RequestID: requestID, Status: status, ErrorMsg: string(rest[:errLen])}, nil
	default:
		return FetchAssetResponse{}, Wrap(ErrUnknownStatus, fmt.Sprintf("fetchAssetResponse status %d", status), nil)
	}
}

// ClientMessageData is the client->server binary frame publishing one
// message on a client-advertised channel. Gated by capability
// clientPublish.
type ClientMessageData struct {
	ChannelID uint32
	Data      []byte
}

func EncodeClientMessageData(m ClientMessageData) []byte {
	buf := make([]byte, 1+4+len(m.Data))
	buf[0] = byte(OpClientMessageData)
	binary.LittleEndian.PutUint32(buf[1:5], m.ChannelID)
	copy(buf[5:], m.Data)
	return buf
}

func DecodeClientMessageData(data []byte) (ClientMessageData, error) {
	if len(data) < 4 {
		return ClientMessageData{}, NewError(ErrParse, "clientMessageData frame shorter than header")
	}
	return ClientMessageData{
		ChannelID: binary.LittleEndian.Uint32(data[0:4]),
		Data:      data[4:],
	}, nil
}

// ServiceCallRequest is the client->server binary frame invoking a
// service. Gated by capability services.
type ServiceCallRequest struct {
	ServiceID uint32
	CallID    uint32
	Encoding  string
	Payload   []byte
}

func EncodeServiceCallRequest(r ServiceCallRequest) []byte {
	encBytes := []byte(r.Encoding)
	buf := make([]byte, 1+4+4+4+len(encBytes)+len(r.Payload))
	off := 0
	buf[off] = byte(OpServiceCallReq)
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], r.ServiceID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], r.CallID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(encBytes)))
	off += 4
	off += copy(buf[off:], encBytes)
	copy(buf[off:], r.Payload)
	return buf
}

func DecodeServiceCallRequest(data []byte) (ServiceCallRequest, error) {
	if len(data) < 12 {
		return ServiceCallRequest{}, NewError(ErrParse, "serviceCallRequest frame shorter than header")
	}
	serviceID := binary.LittleEndian.Uint32(data[0:4])
	callID := binary.LittleEndian.Uint32(data[4:8])
	encLen := binary.LittleEndian.Uint32(data[8:12])
	if uint64(12+encLen) > uint64(len(data)) {
		return ServiceCallRequest{}, NewError(ErrParse, "serviceCallRequest encoding length exceeds frame")
	}
	enc := string(data[12 : 12+encLen])
	payload := data[12+encLen:]
	return ServiceCallRequest{ServiceID: serviceID, CallID: callID, Encoding: enc, Payload: payload}, nil
}

// DecodeServerBinary dispatches a server->client binary frame by its
// leading opcode byte.
func DecodeServerBinary(frame []byte) (BinaryOpcode, any, error) {
	if len(frame) == 0 {
		return 0, nil, NewError(ErrParse, "empty binary frame")
	}
	op := BinaryOpcode(frame[0])
	body := frame[1:]
	switch op {
	case OpMessageData:
		v, err := DecodeMessageData(body)
		return op, v, err
	case OpTime:
		v, err := DecodeTime(body)
		return op, v, err
	case OpServiceCallResp:
		v, err := DecodeServiceCallResponse(body)
		return op, v, err
	case OpFetchAssetResp:
		v, err := DecodeFetchAssetResponse(body)
		return op, v, err
	default:
		return op, nil, UnknownOpcodeError(fmt.Sprintf("binary:0x%02x", byte(op)))
	}
}

// DecodeClientBinary dispatches a client->server binary frame by its
// leading opcode byte.
func DecodeClientBinary(frame []byte) (BinaryOpcode, any, error) {
	if len(frame) == 0 {
		return 0, nil, NewError(ErrParse, "empty binary frame")
	}
	op := BinaryOpcode(frame[0])
	body := frame[1:]
	switch op {
	case OpClientMessageData:
		v, err := DecodeClientMessageData(body)
		return op, v, err
	case OpServiceCallReq:
		v, err := DecodeServiceCallRequest(body)
		return op, v, err
	default:
		return op, nil, UnknownOpcodeError(fmt.Sprintf("binary:0x%02x", byte(op)))
	}
}
