package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix is the namespace shared by every platform topic.
const TopicPrefix = "ecommerce"

// Topic builds a fully-qualified topic name such as "ecommerce.order.created".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

// Event is the envelope every message on the bus is wrapped in.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Meta identifies what an event is about and where it came from.
type Meta struct {
	Type          string
	AggregateID   string
	AggregateType string
	Source        string
	CorrelationID string
}

// NewEvent wraps data in a version 1 envelope with a fresh id and UTC timestamp.
func NewEvent(meta Meta, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", meta.Type, err)
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     meta.Type,
		AggregateID:   meta.AggregateID,
		AggregateType: meta.AggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        meta.Source,
		CorrelationID: meta.CorrelationID,
		Data:          raw,
	}, nil
}

// WithMetadata sets a metadata entry and returns the event for chaining.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Marshal serializes the event to JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeData unmarshals the event payload into v.
func (e *Event) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.EventID)
	}
	return json.Unmarshal(e.Data, v)
}

// UnmarshalEvent decodes an envelope from a message value.
func UnmarshalEvent(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
