package treestore

import (
	"fmt"
	"strings"
	"time"
)

type EventType int

const (
	EventCreate EventType = iota
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

// ParseEventType parses an event type token, case-insensitive.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return EventCreate, nil
	case "update":
		return EventUpdate, nil
	case "delete":
		return EventDelete, nil
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// Event describes one committed mutation. For deletes, Value carries the
// number of nodes removed with the subtree.
type Event struct {
	Type      EventType `json:"-"`
	NodeID    string    `json:"node_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Side      Side      `json:"side,omitempty"`
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Subscriber interface {
	OnEvent(event Event)
	ID() string
}

type EventHandler func(Event)

type FuncSubscriber struct {
	id      string
	handler EventHandler
}

var _ Subscriber = (*FuncSubscriber)(nil)
var _ Subscriber = (*ChannelSubscriber)(nil)

func NewFuncSubscriber(id string, handler EventHandler) *FuncSubscriber {
	return &FuncSubscriber{
		id:      id,
		handler: handler,
	}
}

func (fs *FuncSubscriber) OnEvent(event Event) {
	fs.handler(event)
}

func (fs *FuncSubscriber) ID() string {
	return fs.id
}

type ChannelSubscriber struct {
	id     string
	events chan Event
	buffer int
}

func NewChannelSubscriber(id string, buffer int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:     id,
		events: make(chan Event, buffer),
		buffer: buffer,
	}
}

func (cs *ChannelSubscriber) OnEvent(event Event) {
	select {
	case cs.events <- event:
	default:
		// Drop event if buffer is full to prevent blocking
	}
}

func (cs *ChannelSubscriber) ID() string {
	return cs.id
}

func (cs *ChannelSubscriber) Events() <-chan Event {
	return cs.events
}

func (cs *ChannelSubscriber) Close() {
	close(cs.events)
}

func (s *Store) Subscribe(subscriber Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers[subscriber.ID()] = subscriber
}

func (s *Store) Unsubscribe(subscriberID string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subscribers, subscriberID)
}

func (s *Store) SubscribeFunc(id string, handler EventHandler) {
	s.Subscribe(NewFuncSubscriber(id, handler))
}

func (s *Store) SubscribeChannel(id string, buffer int) *ChannelSubscriber {
	sub := NewChannelSubscriber(id, buffer)
	s.Subscribe(sub)
	return sub
}

func (s *Store) publishEvent(event Event) {
	event.Timestamp = time.Now()
	select {
	case s.eventQueue <- event:
	default:
		// Drop event if queue is full to prevent blocking mutations
	}
}

func (s *Store) eventDispatcher() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event := <-s.eventQueue:
			s.subMu.RLock()
			// Snapshot the subscriber set so delivery never races Subscribe.
			subscribers := make(map[string]Subscriber, len(s.subscribers))
			for id, subscriber := range s.subscribers {
				subscribers[id] = subscriber
			}
			s.subMu.RUnlock()

			for id, subscriber := range subscribers {
				s.wg.Add(1)
				go func(subID string, sub Subscriber, evt Event) {
					defer s.wg.Done()
					defer func() {
						if r := recover(); r != nil {
							// A panicking subscriber must not take down the dispatcher.
						}
					}()
					sub.OnEvent(evt)
				}(id, subscriber, event)
			}
		}
	}
}
