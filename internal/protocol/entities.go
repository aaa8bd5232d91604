package protocol

import "encoding/json"

// Channel is a server-advertised topic + schema pair. Id is assigned by
// the channel registry; everything else is caller-supplied and, per the
// data model invariant, may only be reused under the same Id if it is
// byte-identical to a prior incarnation.
type Channel struct {
	ID             uint32 `json:"id"`
	Topic          string `json:"topic"`
	Encoding       string `json:"encoding"`
	SchemaName     string `json:"schemaName"`
	Schema         string `json:"schema"`
	SchemaEncoding string `json:"schemaEncoding,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SameDescriptor reports whether two channels are identical in every
// field but Id — the condition under which a channel Id may be reused.
func (c Channel) SameDescriptor(other Channel) bool {
	return c.Topic == other.Topic &&
		c.Encoding == other.Encoding &&
		c.SchemaName == other.SchemaName &&
		c.Schema == other.Schema &&
		c.SchemaEncoding == other.SchemaEncoding
}

func (c Channel) MarshalJSON() ([]byte, error) {
	type alias Channel
	return mergeExtra(alias(c), c.Extra)
}

func (c *Channel) UnmarshalJSON(data []byte) error {
	type alias Channel
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*c = Channel(a)
	c.Extra = extra
	return nil
}

// ServiceMessageSchema describes a service's request or response shape
// under the current (non-legacy) service descriptor form.
type ServiceMessageSchema struct {
	Encoding       string `json:"encoding"`
	SchemaName     string `json:"schemaName"`
	SchemaEncoding string `json:"schemaEncoding,omitempty"`
	Schema         string `json:"schema"`
}

// Service is a server-advertised request/response endpoint. Either
// Request/Response are set (current form) or RequestSchema/
// ResponseSchema are set (legacy flat form, whose encoding derives from
// the server's supportedEncodings).
type Service struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	Request  *ServiceMessageSchema `json:"request,omitempty"`
	Response *ServiceMessageSchema `json:"response,omitempty"`

	RequestSchema  string `json:"requestSchema,omitempty"`
	ResponseSchema string `json:"responseSchema,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (s Service) SameDescriptor(other Service) bool {
	if s.Name != other.Name || s.Type != other.Type {
		return false
	}
	if s.RequestSchema != other.RequestSchema || s.ResponseSchema != other.ResponseSchema {
		return false
	}
	return serviceSchemaEqual(s.Request, other.Request) && serviceSchemaEqual(s.Response, other.Response)
}

func serviceSchemaEqual(a, b *ServiceMessageSchema) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s Service) MarshalJSON() ([]byte, error) {
	type alias Service
	return mergeExtra(alias(s), s.Extra)
}

func (s *Service) UnmarshalJSON(data []byte) error {
	type alias Service
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*s = Service(a)
	s.Extra = extra
	return nil
}

// ClientChannel is a channel the client advertises to the server under
// capability clientPublish. Unlike Channel, Id is chosen by the client
// and may be freely reused after unadvertise.
type ClientChannel struct {
	ID             uint32 `json:"id"`
	Topic          string `json:"topic"`
	Encoding       string `json:"encoding"`
	SchemaName     string `json:"schemaName"`
	Schema         string `json:"schema,omitempty"`
	SchemaEncoding string `json:"schemaEncoding,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (c ClientChannel) MarshalJSON() ([]byte, error) {
	type alias ClientChannel
	return mergeExtra(alias(c), c.Extra)
}

func (c *ClientChannel) UnmarshalJSON(data []byte) error {
	type alias ClientChannel
	var a alias
	extra, err := splitExtra(data, &a)
	if err != nil {
		return err
	}
	*c = ClientChannel(a)
	c.Extra = extra
	return nil
}

// SubscriptionRequest is one (subscriptionId, channelId) pair from a
// client's `subscribe` frame.
type SubscriptionRequest struct {
	ID        uint32 `json:"id"`
	ChannelID uint32 `json:"channelId"`
}

// TopicEntry is one named entry of the connection graph's topic delta:
// the publishers and subscribers currently known for that topic.
type TopicEntry struct {
	Name          string   `json:"name"`
	PublisherIDs  []string `json:"publisherIds,omitempty"`
	SubscriberIDs []string `json:"subscriberIds,omitempty"`
}

// ServiceEntry is one named entry of the connection graph's service
// delta: the providers currently known for that service.
type ServiceEntry struct {
	Name        string   `json:"name"`
	ProviderIDs []string `json:"providerIds,omitempty"`
}

// ConnectionGraphUpdate is a delta: named entries in the Topics/Services
// slices replace any prior entry of the same name; RemovedTopics and
// RemovedServices clear named entries entirely.
type ConnectionGraphUpdate struct {
	PublishedTopics    []TopicEntry   `json:"publishedTopics,omitempty"`
	SubscribedTopics   []TopicEntry   `json:"subscribedTopics,omitempty"`
	AdvertisedServices []ServiceEntry `json:"advertisedServices,omitempty"`
	RemovedTopics      []string       `json:"removedTopics,omitempty"`
	RemovedServices    []string       `json:"removedServices,omitempty"`
}
