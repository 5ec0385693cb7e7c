// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"context"
	"errors"
	"fmt"

	eventbus "github.com/jilio/ebu"
)

// Backend event types with built-in handling. Everything else passes
// through as a RawEvent.
const (
	eventTypeMessage    = "message"
	eventTypeUserJoin   = "backend.join.user"
	eventTypeFlowAdd    = "flow-add"
	eventTypeFlowRemove = "source-remove"
)

// handleEvent classifies one inbound stream event. Events whose actor
// is the current user are dropped entirely: they neither produce a
// normalized message nor a raw passthrough.
func (c *Client) handleEvent(evt *RawMessage) {
	if string(evt.User) == c.state.currentUserID() {
		return
	}

	switch evt.Event {
	case eventTypeMessage:
		eventbus.Publish(c.bus, formatMessage(c.state, evt))

	case eventTypeUserJoin:
		user, err := evt.ContentUser()
		if err != nil {
			c.emitError(fmt.Errorf("malformed join event: %w", err))
			return
		}
		c.state.recordUser(formatUser(*user))
		c.log.Debug().Str("user_id", string(user.ID)).Msg("Recorded joined user")

	case eventTypeFlowAdd, eventTypeFlowRemove:
		// Structural change: rebuild the snapshot and the subscription
		// scope. Runs off the listener goroutine so the reload's
		// subscription swap does not deadlock against this dispatch.
		go func() {
			if err := c.Reload(context.Background()); err != nil && !errors.Is(err, ErrEnded) {
				c.emitError(err)
			}
		}()

	default:
		eventbus.Publish(c.bus, RawEvent{Kind: evt.Event, Message: evt})
	}
}
