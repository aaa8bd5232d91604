package protocol

import "encoding/json"

// Capability is an optional feature a server declares at connect time.
// A server must not send messages gated by a capability it did not
// advertise; a well-behaved client refuses to send them either.
type Capability string

const (
	CapClientPublish       Capability = "clientPublish"
	CapParameters          Capability = "parameters"
	CapParametersSubscribe Capability = "parametersSubscribe"
	CapTime                Capability = "time"
	CapServices            Capability = "services"
	CapConnectionGraph     Capability = "connectionGraph"
	CapAssets              Capability = "assets"
)

// CapabilitySet is a small set of Capability values. Zero value is the
// empty set.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from a list of capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the capability is present.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the set's members. Order is not significant on the wire,
// but callers that marshal it (e.g. serverInfo) should get deterministic
// output, so List sorts them.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// MarshalJSON renders the set as a JSON array of capability strings.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	list := s.List()
	strs := make([]string, len(list))
	for i, c := range list {
		strs[i] = string(c)
	}
	return json.Marshal(strs)
}

// UnmarshalJSON reads a JSON array of capability strings into the set.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return err
	}
	set := make(CapabilitySet, len(strs))
	for _, v := range strs {
		set[Capability(v)] = struct{}{}
	}
	*s = set
	return nil
}
