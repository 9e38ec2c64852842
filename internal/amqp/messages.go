package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ClassificationSyncMessage announces that the classifications of one budget
// file were saved. It carries only the key; the worker reads the entries from
// the database so that a late message never overwrites newer state.
type ClassificationSyncMessage struct {
	FileKey   string    `json:"file_key"`
	Actor     string    `json:"actor"`
	Entries   int       `json:"entries"`
	Timestamp time.Time `json:"timestamp"`
}

func NewClassificationSyncMessage(fileKey, actor string, entries int) *ClassificationSyncMessage {
	return &ClassificationSyncMessage{
		FileKey:   fileKey,
		Actor:     actor,
		Entries:   entries,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ClassificationSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClassificationSyncMessageFromJSON decodes a message and rejects one without
// a file key.
func ClassificationSyncMessageFromJSON(data []byte) (*ClassificationSyncMessage, error) {
	var msg ClassificationSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.FileKey) == "" {
		return nil, errors.New("sync message has no file key")
	}
	return &msg, nil
}
