// Package pubsub fans analysis and layout events out to SSE subscribers.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned once the publisher has been shut down.
var ErrClosed = errors.New("publisher is closed")

// TopicAnalysisStatus carries AnalysisStatus events of the analysis runner.
const TopicAnalysisStatus = "analysis_status"

// LayoutTopic is the topic carrying layout frames of one session.
func LayoutTopic(sessionID string) string {
	return "layout/" + sessionID
}

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "analysis_status", "layout/<session>")
	Type    string          `json:"type"`    // Event type (e.g., "looking_up", "relaxed", "dragged")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Analysis states, in pipeline order.
const (
	StateLookingUp = "looking_up"
	StateBuilding  = "building"
	StatePlacing   = "placing"
	StateRelaxing  = "relaxing"
	StateReady     = "ready"
	StateError     = "error"
)

// AnalysisStatus represents the progress of one analysis run
type AnalysisStatus struct {
	State     string `json:"state"`               // looking_up, building, placing, relaxing, ready, error
	Message   string `json:"message"`             // Human-readable status message
	Step      int    `json:"step"`                // Current step number (1-based)
	Total     int    `json:"total"`               // Total number of steps
	SessionID string `json:"sessionId,omitempty"` // Session the run belongs to
	Email     string `json:"email,omitempty"`
}
