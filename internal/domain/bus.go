package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// AnyTenant subscribes to a topic across every tenant.
const AnyTenant = "*"

// MetaReplyTo names the topic a Request expects its reply on.
const MetaReplyTo = "reply_to"

// Standard topic names for the run pipeline.
const (
	TopicRunSubmitted = "heron.run.submitted"
	TopicRunCompleted = "heron.run.completed"
	TopicRunAlert     = "heron.run.alert"
)

// RunRequest is the payload published on TopicRunSubmitted.
type RunRequest struct {
	RunID  string      `json:"runId"`
	Source string      `json:"source,omitempty"`
	Rows   []MetricRow `json:"rows"`
}

// RunEvent is the payload published on TopicRunCompleted and TopicRunAlert.
type RunEvent struct {
	RunID       string    `json:"runId"`
	Status      RunStatus `json:"status"`
	TotalErrors int       `json:"totalErrors"`
	// ErrorSeverityFailures counts failed rows reported at ERROR severity.
	ErrorSeverityFailures int    `json:"errorSeverityFailures"`
	Error                 string `json:"error,omitempty"`
}
