package protocol

import "encoding/json"

// Op name constants, exactly as they appear on the wire. Case-sensitive.
const (
	OpServerInfo                  = "serverInfo"
	OpStatus                      = "status"
	OpRemoveStatus                = "removeStatus"
	OpAdvertise                   = "advertise"
	OpUnadvertise                 = "unadvertise"
	OpParameterValues             = "parameterValues"
	OpAdvertiseServices           = "advertiseServices"
	OpUnadvertiseServices         = "unadvertiseServices"
	OpConnectionGraphUpdate       = "connectionGraphUpdate"
	OpServiceCallFailure          = "serviceCallFailure"
	OpSubscribe                   = "subscribe"
	OpUnsubscribe                 = "unsubscribe"
	OpGetParameters               = "getParameters"
	OpSetParameters               = "setParameters"
	OpSubscribeParameterUpdates   = "subscribeParameterUpdates"
	OpUnsubscribeParameterUpdates = "unsubscribeParameterUpdates"
	OpSubscribeConnectionGraph    = "subscribeConnectionGraph"
	OpUnsubscribeConnectionGraph  = "unsubscribeConnectionGraph"
	OpFetchAsset                  = "fetchAsset"
)

// ---- server -> client -------------------------------------------------

// ServerInfoMsg is sent once, immediately after a client's subprotocol
// is accepted.
type ServerInfoMsg struct {
	Op                 string            `json:"op"`
	Name               string            `json:"name"`
	Capabilities       CapabilitySet     `json:"capabilities"`
	SupportedEncodings []string          `json:"supportedEncodings,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	SessionID          string            `json:"sessionId,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ServerInfoMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpServerInfo
	type alias ServerInfoMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ServerInfoMsg) UnmarshalJSON(data []byte) error {
	type alias ServerInfoMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ServerInfoMsg(a)
	m.Extra = extra
	return nil
}

// StatusMsg is a free-form, severity-tagged, operator-facing message,
// optionally correlated to a prior request via ID.
type StatusMsg struct {
	Op      string      `json:"op"`
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
	ID      string      `json:"id,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m StatusMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpStatus
	type alias StatusMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *StatusMsg) UnmarshalJSON(data []byte) error {
	type alias StatusMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = StatusMsg(a)
	m.Extra = extra
	return nil
}

// RemoveStatusMsg clears previously published status messages by id.
type RemoveStatusMsg struct {
	Op        string   `json:"op"`
	StatusIDs []string `json:"statusIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m RemoveStatusMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpRemoveStatus
	type alias RemoveStatusMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *RemoveStatusMsg) UnmarshalJSON(data []byte) error {
	type alias RemoveStatusMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = RemoveStatusMsg(a)
	m.Extra = extra
	return nil
}

// AdvertiseMsg announces new server channels (op "advertise", server
// direction). The client-direction "advertise" (client channels) is
// ClientAdvertiseMsg — they share an op name but not a Go type, matching
// the wire's own overload of the opcode by direction.
type AdvertiseMsg struct {
	Op       string    `json:"op"`
	Channels []Channel `json:"channels"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m AdvertiseMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpAdvertise
	type alias AdvertiseMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *AdvertiseMsg) UnmarshalJSON(data []byte) error {
	type alias AdvertiseMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = AdvertiseMsg(a)
	m.Extra = extra
	return nil
}

// UnadvertiseMsg retires server channels (op "unadvertise", server
// direction).
type UnadvertiseMsg struct {
	Op         string   `json:"op"`
	ChannelIDs []uint32 `json:"channelIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m UnadvertiseMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnadvertise
	type alias UnadvertiseMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *UnadvertiseMsg) UnmarshalJSON(data []byte) error {
	type alias UnadvertiseMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = UnadvertiseMsg(a)
	m.Extra = extra
	return nil
}

// ParameterValuesMsg carries parameter values, either in response to a
// getParameters/setParameters call (ID set) or as an unsolicited
// subscription push (ID empty).
type ParameterValuesMsg struct {
	Op         string      `json:"op"`
	Parameters []Parameter `json:"parameters"`
	ID         string      `json:"id,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ParameterValuesMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpParameterValues
	type alias ParameterValuesMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ParameterValuesMsg) UnmarshalJSON(data []byte) error {
	type alias ParameterValuesMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ParameterValuesMsg(a)
	m.Extra = extra
	return nil
}

// AdvertiseServicesMsg announces new services; gated by capability
// "services".
type AdvertiseServicesMsg struct {
	Op       string    `json:"op"`
	Services []Service `json:"services"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m AdvertiseServicesMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpAdvertiseServices
	type alias AdvertiseServicesMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *AdvertiseServicesMsg) UnmarshalJSON(data []byte) error {
	type alias AdvertiseServicesMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = AdvertiseServicesMsg(a)
	m.Extra = extra
	return nil
}

// UnadvertiseServicesMsg retires services.
type UnadvertiseServicesMsg struct {
	Op         string   `json:"op"`
	ServiceIDs []uint32 `json:"serviceIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m UnadvertiseServicesMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnadvertiseServices
	type alias UnadvertiseServicesMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *UnadvertiseServicesMsg) UnmarshalJSON(data []byte) error {
	type alias UnadvertiseServicesMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = UnadvertiseServicesMsg(a)
	m.Extra = extra
	return nil
}

// ConnectionGraphUpdateMsg is the wire envelope around a
// ConnectionGraphUpdate delta.
type ConnectionGraphUpdateMsg struct {
	Op string `json:"op"`
	ConnectionGraphUpdate

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ConnectionGraphUpdateMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpConnectionGraphUpdate
	type alias ConnectionGraphUpdateMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ConnectionGraphUpdateMsg) UnmarshalJSON(data []byte) error {
	type alias ConnectionGraphUpdateMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ConnectionGraphUpdateMsg(a)
	m.Extra = extra
	return nil
}

// ServiceCallFailureMsg is sent instead of a binary ServiceCallResponse
// when the application handler (or the server itself, for an unknown
// service id) rejects a service call.
type ServiceCallFailureMsg struct {
	Op        string `json:"op"`
	ServiceID uint32 `json:"serviceId"`
	CallID    uint32 `json:"callId"`
	Message   string `json:"message"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ServiceCallFailureMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpServiceCallFailure
	type alias ServiceCallFailureMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ServiceCallFailureMsg) UnmarshalJSON(data []byte) error {
	type alias ServiceCallFailureMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ServiceCallFailureMsg(a)
	m.Extra = extra
	return nil
}

// ---- client -> server --------------------------------------------------

// SubscribeMsg requests new subscriptions.
type SubscribeMsg struct {
	Op            string                `json:"op"`
	Subscriptions []SubscriptionRequest `json:"subscriptions"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m SubscribeMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpSubscribe
	type alias SubscribeMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *SubscribeMsg) UnmarshalJSON(data []byte) error {
	type alias SubscribeMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = SubscribeMsg(a)
	m.Extra = extra
	return nil
}

// UnsubscribeMsg cancels subscriptions by id. (An older spec draft
// mislabeled this op "subscribe" in one place; that was a documentation
// bug and this implementation only ever emits/accepts "unsubscribe".)
type UnsubscribeMsg struct {
	Op              string   `json:"op"`
	SubscriptionIDs []uint32 `json:"subscriptionIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m UnsubscribeMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnsubscribe
	type alias UnsubscribeMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *UnsubscribeMsg) UnmarshalJSON(data []byte) error {
	type alias UnsubscribeMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = UnsubscribeMsg(a)
	m.Extra = extra
	return nil
}

// ClientAdvertiseMsg announces client channels (op "advertise", client
// direction). Gated by capability clientPublish.
type ClientAdvertiseMsg struct {
	Op       string          `json:"op"`
	Channels []ClientChannel `json:"channels"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ClientAdvertiseMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpAdvertise
	type alias ClientAdvertiseMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ClientAdvertiseMsg) UnmarshalJSON(data []byte) error {
	type alias ClientAdvertiseMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ClientAdvertiseMsg(a)
	m.Extra = extra
	return nil
}

// ClientUnadvertiseMsg retires client channels (op "unadvertise", client
// direction).
type ClientUnadvertiseMsg struct {
	Op         string   `json:"op"`
	ChannelIDs []uint32 `json:"channelIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m ClientUnadvertiseMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnadvertise
	type alias ClientUnadvertiseMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *ClientUnadvertiseMsg) UnmarshalJSON(data []byte) error {
	type alias ClientUnadvertiseMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = ClientUnadvertiseMsg(a)
	m.Extra = extra
	return nil
}

// GetParametersMsg requests current values for the named parameters (or
// every parameter, if ParameterNames is empty — implementation-defined
// by most servers; this one passes the list unchanged to its
// OnGetParameters handler, which decides what empty means).
type GetParametersMsg struct {
	Op              string   `json:"op"`
	ParameterNames  []string `json:"parameterNames"`
	ID              string   `json:"id,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m GetParametersMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpGetParameters
	type alias GetParametersMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *GetParametersMsg) UnmarshalJSON(data []byte) error {
	type alias GetParametersMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = GetParametersMsg(a)
	m.Extra = extra
	return nil
}

// SetParametersMsg requests the given parameters be set (or deleted, for
// any Parameter whose Value is unset).
type SetParametersMsg struct {
	Op         string      `json:"op"`
	Parameters []Parameter `json:"parameters"`
	ID         string      `json:"id,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m SetParametersMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpSetParameters
	type alias SetParametersMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *SetParametersMsg) UnmarshalJSON(data []byte) error {
	type alias SetParametersMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = SetParametersMsg(a)
	m.Extra = extra
	return nil
}

// SubscribeParameterUpdatesMsg appends to the session's parameter
// subscription set (duplicates ignored, existing entries kept).
type SubscribeParameterUpdatesMsg struct {
	Op             string   `json:"op"`
	ParameterNames []string `json:"parameterNames"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m SubscribeParameterUpdatesMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpSubscribeParameterUpdates
	type alias SubscribeParameterUpdatesMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *SubscribeParameterUpdatesMsg) UnmarshalJSON(data []byte) error {
	type alias SubscribeParameterUpdatesMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = SubscribeParameterUpdatesMsg(a)
	m.Extra = extra
	return nil
}

// UnsubscribeParameterUpdatesMsg removes entries from the session's
// parameter subscription set.
type UnsubscribeParameterUpdatesMsg struct {
	Op             string   `json:"op"`
	ParameterNames []string `json:"parameterNames"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m UnsubscribeParameterUpdatesMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnsubscribeParameterUpdates
	type alias UnsubscribeParameterUpdatesMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *UnsubscribeParameterUpdatesMsg) UnmarshalJSON(data []byte) error {
	type alias UnsubscribeParameterUpdatesMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = UnsubscribeParameterUpdatesMsg(a)
	m.Extra = extra
	return nil
}

// SubscribeConnectionGraphMsg turns on connection-graph delta delivery
// for the session.
type SubscribeConnectionGraphMsg struct {
	Op string `json:"op"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m SubscribeConnectionGraphMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpSubscribeConnectionGraph
	type alias SubscribeConnectionGraphMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *SubscribeConnectionGraphMsg) UnmarshalJSON(data []byte) error {
	type alias SubscribeConnectionGraphMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = SubscribeConnectionGraphMsg(a)
	m.Extra = extra
	return nil
}

// UnsubscribeConnectionGraphMsg turns off connection-graph delivery.
type UnsubscribeConnectionGraphMsg struct {
	Op string `json:"op"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m UnsubscribeConnectionGraphMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpUnsubscribeConnectionGraph
	type alias UnsubscribeConnectionGraphMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *UnsubscribeConnectionGraphMsg) UnmarshalJSON(data []byte) error {
	type alias UnsubscribeConnectionGraphMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = UnsubscribeConnectionGraphMsg(a)
	m.Extra = extra
	return nil
}

// FetchAssetMsg requests an opaque asset by URI; the response (a binary
// FetchAssetResponse frame) may arrive arbitrarily later.
type FetchAssetMsg struct {
	Op        string `json:"op"`
	URI       string `json:"uri"`
	RequestID uint32 `json:"requestId"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m FetchAssetMsg) MarshalJSON() ([]byte, error) {
	m.Op = OpFetchAsset
	type alias FetchAssetMsg
	return mergeExtra(alias(m), m.Extra)
}

func (m *FetchAssetMsg) UnmarshalJSON(data []byte) error {
	type alias FetchAssetMsg
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*m = FetchAssetMsg(a)
	m.Extra = extra
	return nil
}

// PeekOp reads the "op" discriminator of a JSON control frame.
func PeekOp(data []byte) (string, error) { return peekOp(data) }
