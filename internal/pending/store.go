// Package pending stages at most one not-yet-persisted outbound message
// across the gap between "send message" and "chat id resolved".
package pending

import (
	"encoding/json"
	"time"

	"github.com/nvoronin/periscope/internal/models"
)

// ExpiryWindow is how long a staged message stays replayable. Past it the
// user's intent is considered stale and the message is discarded, never
// replayed.
const ExpiryWindow = 30 * time.Minute

// Storage keys. The slot value and the processing marker are kept separate
// so a failed replay can clear the marker without touching the message.
const (
	slotKey       = "pendingMessage"
	processingKey = "pendingMessageProcessing"
)

// Message is a staged outbound message.
type Message struct {
	Content     string
	Attachments []models.Attachment
	Timestamp   time.Time
	Processed   bool
}

// KV is the storage medium behind a Store: a session file for the CLI, an
// in-memory map for tests.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Store holds the single pending-message slot. Only one pending message
// may exist at a time: a Save before the prior slot is consumed is a
// legitimate overwrite (the user edited and resent), not an error.
type Store struct {
	kv KV
}

// NewStore creates a store over the given storage medium.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// storedMessage is the serialized slot format. Timestamp is unix
// milliseconds, matching what older clients wrote.
type storedMessage struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
	Timestamp   int64               `json:"timestamp"`
	Processed   bool                `json:"processed"`
}

// Save overwrites the slot with a fresh unprocessed message.
func (s *Store) Save(content string, attachments []models.Attachment) error {
	return s.put(storedMessage{
		Content:     content,
		Attachments: attachments,
		Timestamp:   time.Now().UnixMilli(),
		Processed:   false,
	})
}

func (s *Store) put(msg storedMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.kv.Set(slotKey, string(raw))
}

// Get returns the staged message, or nil when the slot is empty. The slot
// is versioned client-side storage that can outlive a deployment that
// changed its format, so decoding is tolerant: the structured format, a
// legacy object without timestamp, a bare JSON string and non-JSON content
// all normalize into the same shape.
func (s *Store) Get() (*Message, error) {
	raw, ok, err := s.kv.Get(slotKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	return decode(raw), nil
}

func decode(raw string) *Message {
	var stored storedMessage
	if err := json.Unmarshal([]byte(raw), &stored); err == nil && (stored.Content != "" || stored.Timestamp != 0) {
		msg := &Message{
			Content:     stored.Content,
			Attachments: stored.Attachments,
			Processed:   stored.Processed,
			Timestamp:   time.UnixMilli(stored.Timestamp),
		}
		if stored.Timestamp == 0 {
			// Legacy object without a timestamp: treat as staged now.
			msg.Timestamp = time.Now()
		}
		return msg
	}

	// A bare JSON-encoded string.
	var legacy string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		if legacy == "" {
			return nil
		}
		return &Message{Content: legacy, Timestamp: time.Now()}
	}

	// Not JSON at all: use the raw value as content.
	return &Message{Content: raw, Timestamp: time.Now()}
}

// MarkProcessed flags the staged message as processed in place.
func (s *Store) MarkProcessed() error {
	msg, err := s.Get()
	if err != nil || msg == nil {
		return err
	}
	return s.put(storedMessage{
		Content:     msg.Content,
		Attachments: msg.Attachments,
		Timestamp:   msg.Timestamp.UnixMilli(),
		Processed:   true,
	})
}

// Clear removes the slot and the processing marker.
func (s *Store) Clear() error {
	if err := s.kv.Delete(slotKey); err != nil {
		return err
	}
	return s.kv.Delete(processingKey)
}

// Expired reports whether no message is staged or the staged message is
// older than the expiry window.
func (s *Store) Expired() (bool, error) {
	msg, err := s.Get()
	if err != nil {
		return true, err
	}
	if msg == nil {
		return true, nil
	}
	return time.Since(msg.Timestamp) > ExpiryWindow, nil
}

// BeginProcessing claims the replay of the staged message. Returns false
// when another consumer already holds the marker. Must be called before
// the replay's network call begins.
func (s *Store) BeginProcessing() (bool, error) {
	_, held, err := s.kv.Get(processingKey)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}
	if err := s.kv.Set(processingKey, "true"); err != nil {
		return false, err
	}
	return true, nil
}

// EndProcessing releases the processing marker. Called unconditionally
// after a replay attempt so a failed replay can be retried.
func (s *Store) EndProcessing() error {
	return s.kv.Delete(processingKey)
}
