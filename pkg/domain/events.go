package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventModelCall   EventType = "model_call"
	EventModelReturn EventType = "model_return"
)

// NodeEvent represents entry to or exit from a node.
type NodeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Node      string    `json:"node"`
	Step      int       `json:"step"`
}

// ModelEvent represents a round trip to the model API.
type ModelEvent struct {
	Timestamp        time.Time     `json:"timestamp"`
	Type             EventType     `json:"type"`
	Model            string        `json:"model,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	IsError          bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability. Any field may
// be nil; emitters must check before calling.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnModelCall   func(context.Context, *ModelEvent)
	OnModelReturn func(context.Context, *ModelEvent)
}
