package amqp

import (
	"encoding/json"
	"time"
)

// Sync operations carried by TransactionSyncMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionSyncMessage tells the ledger worker to re-export a transaction.
// It carries only the ID and the operation; the worker fetches the full row
// from the database so the queue never holds stale amounts.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64, op string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
