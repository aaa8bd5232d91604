package server

import (
	"encoding/json"
	"strconv"
)

func decodeJSON(frame []byte, v any) error {
	return json.Unmarshal(frame, v)
}

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
