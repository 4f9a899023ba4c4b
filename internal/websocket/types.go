package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/yt-etl/internal/etl"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeFileResult carries the outcome of one processed file
	EventTypeFileResult EventType = "file_result"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RunID     string      `json:"run_id,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"` // "subscribe", "ping"
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest narrows the events a client receives
type SubscriptionRequest struct {
	Events []EventType   `json:"events"`
	Filter *ResultFilter `json:"filter,omitempty"`
}

// ResultFilter selects file results by country and status. Empty lists
// match everything.
type ResultFilter struct {
	Countries []string     `json:"countries,omitempty"`
	Statuses  []etl.Status `json:"statuses,omitempty"`
}

// Matches reports whether a file result passes the filter.
func (f *ResultFilter) Matches(r *etl.FileResult) bool {
	return (len(f.Countries) == 0 || contains(f.Countries, r.Country)) &&
		(len(f.Statuses) == 0 || contains(f.Statuses, r.Status))
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
