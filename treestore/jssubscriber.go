package treestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// JSEventData is the event object handed to user scripts.
type JSEventData struct {
	Type      string `json:"type"`
	NodeID    string `json:"node_id"`
	ParentID  string `json:"parent_id"`
	Side      string `json:"side"`
	Value     int    `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// JSSubscriberConfig holds configuration for a JS subscriber.
type JSSubscriberConfig struct {
	ID               string
	Script           string
	ExecutionTimeout time.Duration
	EnableLogging    bool
	EventFilters     []EventType
	StrictMode       bool
}

// JSSubscriber executes JavaScript code on tree mutation events. Each
// subscriber owns one goja runtime; scripts see a console, an `event` object
// and the lancet/lo helper bindings.
type JSSubscriber struct {
	id     string
	script string
	vm     *goja.Runtime
	config JSSubscriberConfig
	mu     sync.RWMutex
}

var _ Subscriber = (*JSSubscriber)(nil)

// NewJSSubscriber creates a new JavaScript subscriber.
func NewJSSubscriber(config JSSubscriberConfig) (*JSSubscriber, error) {
	if config.ID == "" {
		return nil, fmt.Errorf("subscriber ID cannot be empty")
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 5 * time.Second
	}

	subscriber := &JSSubscriber{
		id:     config.ID,
		script: config.Script,
		config: config,
	}

	if err := subscriber.initVM(); err != nil {
		return nil, fmt.Errorf("failed to initialize JS runtime: %w", err)
	}
	return subscriber, nil
}

func (js *JSSubscriber) initVM() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	vm := goja.New()
	// Scripts address event fields by their json names (event.node_id).
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	registry := new(require.Registry)
	registry.Enable(vm)
	if js.config.EnableLogging {
		console.Enable(vm)
	} else {
		vm.Set("console", vm.NewObject())
	}

	// Keep the sandbox tight: nothing beyond the installed helpers.
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())
	vm.Set("global", goja.Undefined())
	vm.Set("process", goja.Undefined())

	lancetBinds(vm)
	loBinds(vm)

	// Compile and validate the script up front so a broken subscription is
	// rejected at creation time, not on the first event.
	if js.script != "" {
		if _, err := goja.Compile("user-script", js.script, js.config.StrictMode); err != nil {
			return fmt.Errorf("script compilation failed: %w", err)
		}
	}

	js.vm = vm
	return nil
}

func (js *JSSubscriber) ID() string {
	return js.id
}

func (js *JSSubscriber) OnEvent(event Event) {
	js.mu.RLock()
	if js.vm == nil {
		js.mu.RUnlock()
		return
	}
	js.mu.RUnlock()

	if len(js.config.EventFilters) > 0 {
		found := false
		for _, filter := range js.config.EventFilters {
			if event.Type == filter {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), js.config.ExecutionTimeout)
	defer cancel()

	done := make(chan struct{}, 1)
	go func() {
		defer func() {
			recover() // a panicking script must not take down the dispatcher
			done <- struct{}{}
		}()
		js.executeScript(event)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		js.mu.RLock()
		if js.vm != nil {
			js.vm.Interrupt("execution timeout")
		}
		js.mu.RUnlock()
		<-done
	}
}

func (js *JSSubscriber) executeScript(event Event) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	if js.vm == nil || js.script == "" {
		return
	}

	js.vm.Set("event", JSEventData{
		Type:      event.Type.String(),
		NodeID:    event.NodeID,
		ParentID:  event.ParentID,
		Side:      string(event.Side),
		Value:     event.Value,
		Timestamp: event.Timestamp.Unix(),
	})

	js.vm.ClearInterrupt()
	_, _ = js.vm.RunString(js.script)
}

// UpdateScript safely replaces the JavaScript code.
func (js *JSSubscriber) UpdateScript(newScript string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.vm == nil {
		return fmt.Errorf("subscriber is closed")
	}
	if _, err := goja.Compile("user-script", newScript, js.config.StrictMode); err != nil {
		return fmt.Errorf("script compilation failed: %w", err)
	}
	js.script = newScript
	return nil
}

// GetScript returns the current script.
func (js *JSSubscriber) GetScript() string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	return js.script
}

// Close releases the runtime.
func (js *JSSubscriber) Close() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.vm != nil {
		js.vm.ClearInterrupt()
		js.vm = nil
	}
	return nil
}
