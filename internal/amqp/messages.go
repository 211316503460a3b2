package amqp

import (
	"encoding/json"

	"chitieu/internal/notify"
)

// RecordEventMessage is the wire form of a change event. Consumers that need
// record data fetch it from the database by ID; the message stays small.
type RecordEventMessage struct {
	Kind      string `json:"kind"`
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewRecordEventMessage converts a notify.Event to its wire form.
func NewRecordEventMessage(ev notify.Event) *RecordEventMessage {
	return &RecordEventMessage{
		Kind:      string(ev.Kind),
		Action:    ev.Action,
		ID:        ev.ID,
		Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventMessageFromJSON creates a message from JSON bytes
func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
