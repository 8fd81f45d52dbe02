// Package protocol defines the socket messages exchanged with speech clients.
//
// Clients send JSON text frames carrying a speech-to-text fragment. The server
// answers each exchange with a metadata message, zero or more binary audio
// frames and an end marker. Failures are reported with an error message and
// never close the connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedInbound is returned when a client payload is not a JSON object
// with a string text field.
var ErrMalformedInbound = errors.New("protocol: malformed inbound message")

// Payloads that are dropped without a reply. Both match ErrMalformedInbound.
var (
	ErrInvalidJSON = fmt.Errorf("%w: invalid JSON", ErrMalformedInbound)
	ErrMissingText = fmt.Errorf("%w: missing text field", ErrMalformedInbound)
)

// MessageType identifies a server message.
type MessageType string

const (
	TypeMetadata MessageType = "metadata" // Reply text and emotion, sent before audio
	TypeEnd      MessageType = "end"      // Audio for the exchange is complete
	TypeError    MessageType = "error"    // Exchange failed, session continues
)

// ClientMessage is a speech-to-text fragment from the client.
type ClientMessage struct {
	Text string `json:"text"`
}

// ParseClientMessage decodes an inbound text frame. Text that is not JSON
// yields ErrInvalidJSON and an object without text yields ErrMissingText.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedInbound)
	}
	field, ok := raw["text"]
	if !ok {
		return nil, ErrMissingText
	}
	var msg ClientMessage
	if err := json.Unmarshal(field, &msg.Text); err != nil {
		return nil, fmt.Errorf("%w: text: %w", ErrMalformedInbound, err)
	}
	return &msg, nil
}

// ServerMessage is a JSON message sent to the client.
// Only the fields relevant to Type are populated.
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Text    string      `json:"text,omitempty"`
	Emotion *int        `json:"emotion,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Metadata creates the message announcing a reply.
func Metadata(text string, emotion int) *ServerMessage {
	return &ServerMessage{Type: TypeMetadata, Text: text, Emotion: &emotion}
}

// End creates the end-of-audio marker.
func End() *ServerMessage {
	return &ServerMessage{Type: TypeEnd}
}

// Error creates an error report.
func Error(message string) *ServerMessage {
	return &ServerMessage{Type: TypeError, Message: message}
}

// Bytes returns the JSON-encoded message.
func (m *ServerMessage) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseServerMessage decodes a server message. Used by clients and tests.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}
