package amqp

import (
	"encoding/json"
	"time"
)

// PaymentEventMessage is the lightweight notification published when a fee
// payment is applied or reversed. It carries only the transaction id; the
// worker fetches the full record from storage.
type PaymentEventMessage struct {
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewPaymentEventMessage(kind, transactionID string) *PaymentEventMessage {
	return &PaymentEventMessage{
		Kind:          kind,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *PaymentEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentEventMessageFromJSON(data []byte) (*PaymentEventMessage, error) {
	var msg PaymentEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
