package server

import (
	"encoding/json"

	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/marker"
)

// marshalUnit marker-encodes a unit and wraps it as a JSON string so that
// newlines survive the SSE data framing.
func marshalUnit(u *chat.Unit) (string, error) {
	flat, err := marker.EncodeUnit(u)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
