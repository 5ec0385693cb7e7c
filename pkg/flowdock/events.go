// Copyright 2024-2026 Aiku AI

package flowdock

import (
	eventbus "github.com/jilio/ebu"
)

// The client publishes a closed set of normalized event kinds on a typed
// event bus: LoadEvent after every applied reload, Message for inbound
// chat messages, ErrorEvent for transport or formatting failures on the
// asynchronous path, and RawEvent for backend event types the client has
// no built-in handling for. Self-originated stream events are dropped
// before any of these are published.

// LoadEvent signals that a reload completed and a new snapshot is in
// place. Snapshot internals are not exposed; use Client.Flows for a
// copy of the room list.
type LoadEvent struct {
	Flows int
	Users int
}

// ErrorEvent carries a failure surfaced outside any specific command
// call: stream transport errors and failures of event-triggered
// reloads.
type ErrorEvent struct {
	Err error
}

// RawEvent is the verbatim passthrough for backend event types without
// built-in handling. Kind is the backend event type string.
type RawEvent struct {
	Kind    string
	Message *RawMessage
}

// OnLoad registers a handler for load events.
func (c *Client) OnLoad(fn func(LoadEvent)) {
	_ = eventbus.Subscribe(c.bus, fn)
}

// OnMessage registers a handler for normalized inbound messages.
func (c *Client) OnMessage(fn func(Message)) {
	_ = eventbus.Subscribe(c.bus, fn)
}

// OnError registers a handler for asynchronous failures.
func (c *Client) OnError(fn func(ErrorEvent)) {
	_ = eventbus.Subscribe(c.bus, fn)
}

// OnRaw registers a handler for passthrough events.
func (c *Client) OnRaw(fn func(RawEvent)) {
	_ = eventbus.Subscribe(c.bus, fn)
}
