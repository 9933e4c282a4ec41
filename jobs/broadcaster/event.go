package broadcaster

import (
	"encoding/json"
	"fmt"
)

// EventVersion is bumped on incompatible payload changes.
const EventVersion = 1

// Event is the published payload of one registry event.
type Event struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Deposit uint64 `json:"deposit,omitempty"`
	Seq     uint64 `json:"seq"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
