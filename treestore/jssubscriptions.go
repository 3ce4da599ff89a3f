package treestore

import (
	"fmt"
	"time"
)

// SavedJSSubscription is the registry record for a JS subscription. The
// registry lives in memory only; the store does not survive restarts, so
// neither do its subscriptions.
type SavedJSSubscription struct {
	ID               string      `json:"id"`
	Script           string      `json:"script"`
	ExecutionTimeout int64       `json:"execution_timeout"` // milliseconds
	EnableLogging    bool        `json:"enable_logging"`
	EventFilters     []EventType `json:"event_filters,omitempty"`
	StrictMode       bool        `json:"strict_mode"`
	CreatedAt        time.Time   `json:"created_at"`
}

// CreateJSSubscription registers a scripted mutation hook. The script is
// compiled eagerly so a broken subscription is rejected here.
func (s *Store) CreateJSSubscription(id, script string, config *JSSubscriberConfig) error {
	if id == "" {
		return fmt.Errorf("subscription ID cannot be empty")
	}

	if config == nil {
		config = &JSSubscriberConfig{EnableLogging: true}
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 5 * time.Second
	}
	config.ID = id
	config.Script = script

	jsSubscriber, err := NewJSSubscriber(*config)
	if err != nil {
		return fmt.Errorf("failed to create JS subscriber: %w", err)
	}

	s.subMu.Lock()
	if _, exists := s.jsSubs[id]; exists {
		s.subMu.Unlock()
		jsSubscriber.Close()
		return fmt.Errorf("%s: %w", id, ErrSubscriptionExists)
	}
	s.jsSubs[id] = SavedJSSubscription{
		ID:               id,
		Script:           script,
		ExecutionTimeout: config.ExecutionTimeout.Milliseconds(),
		EnableLogging:    config.EnableLogging,
		EventFilters:     config.EventFilters,
		StrictMode:       config.StrictMode,
		CreatedAt:        time.Now(),
	}
	s.subscribers[id] = jsSubscriber
	s.subMu.Unlock()

	return nil
}

// RemoveJSSubscription unregisters a scripted hook and releases its runtime.
func (s *Store) RemoveJSSubscription(id string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if _, exists := s.jsSubs[id]; !exists {
		return fmt.Errorf("%s: %w", id, ErrSubscriptionNotFound)
	}
	if sub, ok := s.subscribers[id]; ok {
		if jsSub, ok := sub.(*JSSubscriber); ok {
			jsSub.Close()
		}
		delete(s.subscribers, id)
	}
	delete(s.jsSubs, id)
	return nil
}

// ListJSSubscriptions returns all registered scripted hooks.
func (s *Store) ListJSSubscriptions() []SavedJSSubscription {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	out := make([]SavedJSSubscription, 0, len(s.jsSubs))
	for _, sub := range s.jsSubs {
		out = append(out, sub)
	}
	return out
}
