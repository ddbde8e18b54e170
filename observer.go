// Package ioc provides Observer pattern interfaces for bean lifecycle events.
// Events use the CloudEvents specification so container activity can be
// forwarded to external systems without translation.
package ioc

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// container events.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is interested in.
	// Observers should handle events quickly; delivery happens on a
	// goroutine per event and observer.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	// This ID is used for registration tracking and debugging.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer to receive notifications.
	// If eventTypes is empty, the observer receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Unregistering an unknown
	// observer is not an error.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all registered observers without
	// blocking the caller.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about currently registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants for container events, in reverse domain notation.
const (
	// Bean lifecycle events
	EventTypeBeanConstructed     = "com.ioc.bean.constructed"
	EventTypeBeanPropertiesBound = "com.ioc.bean.properties_bound"
	EventTypeBeanThreadAssigned  = "com.ioc.bean.thread_assigned"
	EventTypeBeanCompleted       = "com.ioc.bean.completed"
	EventTypeBeanFailed          = "com.ioc.bean.failed"
	EventTypeBeanDestroyed       = "com.ioc.bean.destroyed"

	// Context lifecycle events
	EventTypeContextRefreshed     = "com.ioc.context.refreshed"
	EventTypeContextRefreshFailed = "com.ioc.context.refresh_failed"
	EventTypeContextClosed        = "com.ioc.context.closed"
	EventTypeConfigApplied        = "com.ioc.context.config_applied"
)

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
