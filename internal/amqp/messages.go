package amqp

import (
	"encoding/json"
	"strings"
	"time"

	"pocketbook/internal/docstore"
)

// ChangeMessage announces a committed document change. It carries only the
// location and version; consumers re-read the document from the database.
type ChangeMessage struct {
	Origin     string              `json:"origin"`
	Collection string              `json:"collection"`
	DocID      string              `json:"docId"`
	Kind       docstore.ChangeKind `json:"kind"`
	Version    int64               `json:"version"`
	Timestamp  time.Time           `json:"timestamp"`
}

// NewChangeMessage builds the message announcing c on behalf of origin.
func NewChangeMessage(origin string, c docstore.Change) *ChangeMessage {
	return &ChangeMessage{
		Origin:     origin,
		Collection: c.Collection,
		DocID:      c.Doc.ID,
		Kind:       c.Kind,
		Version:    c.Doc.Version,
		Timestamp:  time.Now(),
	}
}

// RoutingKey maps the collection path onto topic words,
// e.g. "accounts.a1.transactions".
func (m *ChangeMessage) RoutingKey() string {
	return strings.ReplaceAll(strings.Trim(m.Collection, "/"), "/", ".")
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
