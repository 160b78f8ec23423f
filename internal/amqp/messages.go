package amqp

import (
	"encoding/json"
	"time"
)

// RecomputeMessage asks the ledger worker to rebuild a user's balance ledger
// anchored at the given month. The worker fetches everything else from the
// record store.
type RecomputeMessage struct {
	UserID    string    `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecomputeMessage creates a recompute request anchored at year/month.
func NewRecomputeMessage(userID string, year, month int) *RecomputeMessage {
	return &RecomputeMessage{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeMessageFromJSON creates a message from JSON bytes.
func RecomputeMessageFromJSON(data []byte) (*RecomputeMessage, error) {
	var msg RecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
