package ioc

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // set of event types this observer is interested in
	registeredAt time.Time
}

// RegisterObserver adds an observer to receive lifecycle events from the context.
// If eventTypes is empty, the observer receives all events.
func (c *ApplicationContext) RegisterObserver(observer Observer, eventTypes ...string) error {
	c.observerMutex.Lock()
	defer c.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	c.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	c.logger.Info("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer from receiving notifications.
// This method is idempotent and won't error if the observer wasn't registered.
func (c *ApplicationContext) UnregisterObserver(observer Observer) error {
	c.observerMutex.Lock()
	defer c.observerMutex.Unlock()

	if _, exists := c.observers[observer.ObserverID()]; exists {
		delete(c.observers, observer.ObserverID())
		c.logger.Info("Observer unregistered", "observerID", observer.ObserverID())
	}

	return nil
}

// NotifyObservers sends a CloudEvent to all registered observers. Each
// observer is called on its own goroutine unless ctx requests synchronous
// delivery with WithSynchronousNotification.
func (c *ApplicationContext) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}

	if err := ValidateCloudEvent(event); err != nil {
		c.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	// Observers run without the lock held so a synchronous observer may
	// trigger builds that raise events of their own.
	c.observerMutex.RLock()
	targets := make([]*observerRegistration, 0, len(c.observers))
	for _, registration := range c.observers {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		targets = append(targets, registration)
	}
	c.observerMutex.RUnlock()

	synchronous := IsSynchronousNotification(ctx)
	for _, registration := range targets {
		if synchronous {
			c.deliver(ctx, registration, event)
			continue
		}
		go c.deliver(ctx, registration, event)
	}

	return nil
}

func (c *ApplicationContext) deliver(ctx context.Context, registration *observerRegistration, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked", "observerID", registration.observer.ObserverID(), "event", event.Type(), "panic", r)
		}
	}()

	if err := registration.observer.OnEvent(ctx, event); err != nil {
		c.logger.Error("Observer error", "observerID", registration.observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

// GetObservers returns information about currently registered observers.
func (c *ApplicationContext) GetObservers() []ObserverInfo {
	c.observerMutex.RLock()
	defer c.observerMutex.RUnlock()

	info := make([]ObserverInfo, 0, len(c.observers))
	for _, registration := range c.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}

		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}

	return info
}
