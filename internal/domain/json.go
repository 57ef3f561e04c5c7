package domain

import (
	"bytes"
	"io"
)

// jsonReader adapts a json.RawMessage for use with json.NewDecoder so
// callers can set DisallowUnknownFields, matching spec.md §9's "reject
// unknown fields unless marked as pass-through" rule.
func jsonReader(raw []byte) io.Reader {
	if len(raw) == 0 {
		return bytes.NewReader([]byte("{}"))
	}
	return bytes.NewReader(raw)
}
