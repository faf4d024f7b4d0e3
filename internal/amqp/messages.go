package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ResolutionSubmittedMessage announces a resolve the backend accepted.
// It carries only the journal reference; the worker loads the rest.
type ResolutionSubmittedMessage struct {
	EventID     string    `json:"event_id"`
	Reference   string    `json:"reference"`
	DailySaleID int64     `json:"daily_sale_id"`
	Type        string    `json:"type"`
	TotalCents  int64     `json:"total_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewResolutionSubmittedMessage stamps a fresh event id and the current time.
func NewResolutionSubmittedMessage(reference string, dailySaleID int64, resolutionType string, totalCents int64) *ResolutionSubmittedMessage {
	return &ResolutionSubmittedMessage{
		EventID:     uuid.NewString(),
		Reference:   reference,
		DailySaleID: dailySaleID,
		Type:        resolutionType,
		TotalCents:  totalCents,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *ResolutionSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ResolutionSubmittedMessageFromJSON decodes a message and requires a reference.
func ResolutionSubmittedMessageFromJSON(data []byte) (*ResolutionSubmittedMessage, error) {
	var msg ResolutionSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Reference == "" {
		return nil, errors.New("message without reference")
	}
	return &msg, nil
}
