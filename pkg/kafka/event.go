package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the newest envelope version this package understands.
const SchemaVersion = 1

// ErrInvalidEvent is returned for messages that decode but are not usable
// envelopes. Consumers dead-letter them without retrying.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the envelope for every message this service publishes.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Key           string            `json:"key"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a generated ID and the current timestamp.
// The key selects the partition, so related events stay ordered.
func NewEvent(eventType, key, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	return &Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Key:       key,
		Version:   SchemaVersion,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      payload,
		Metadata:  make(map[string]string),
	}, nil
}

func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the envelope fields every consumer relies on.
func (e *Event) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case e.EventType == "":
		return fmt.Errorf("%w: missing event_type", ErrInvalidEvent)
	case e.Version < 1 || e.Version > SchemaVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidEvent, e.Version)
	}
	return nil
}

// UnmarshalEvent decodes and validates an envelope.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// Decode returns the event payload as a T.
func Decode[T any](e *Event) (T, error) {
	var v T
	err := e.UnmarshalData(&v)
	return v, err
}
