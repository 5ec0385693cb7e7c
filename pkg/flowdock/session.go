// Copyright 2024-2026 Aiku AI

package flowdock

import "context"

// Session is the transport boundary: an authenticated connection to the
// chat backend capable of REST calls and of opening a live event
// stream. The client owns exactly one Session for its lifetime.
// A real implementation against the Flowdock API lives in rest.go;
// tests substitute fakes.
type Session interface {
	// Flows fetches the full flow list along with the id of the
	// authenticated user. The response is all-or-nothing: on error no
	// partial state is returned.
	Flows(ctx context.Context) (userID string, flows []Flow, err error)

	// Stream opens a live event subscription scoped to the given flow
	// ids. Options are passed through to the backend unmodified. The
	// returned stream delivers events until closed or until the
	// transport fails.
	Stream(ctx context.Context, flowIDs []string, options map[string]string) (EventStream, error)

	// SendMessage posts a top-level chat message to a flow.
	SendMessage(ctx context.Context, flowID, text string, tags []string) (*RawMessage, error)

	// SendThreadMessage posts a reply within an existing thread.
	SendThreadMessage(ctx context.Context, flowID, threadID, text string, tags []string) (*RawMessage, error)

	// SendPrivateMessage sends a direct message to a user.
	SendPrivateMessage(ctx context.Context, userID, text string, tags []string) (*RawMessage, error)

	// EditMessage updates a flow message in place. The flow is addressed
	// by parameterized org and flow names.
	EditMessage(ctx context.Context, org, flow, messageID string, edit MessageEdit) error

	// EditPrivateMessage updates a direct message in place.
	EditPrivateMessage(ctx context.Context, userID, messageID string, edit MessageEdit) error

	// GetMessage fetches the stored representation of a flow message.
	GetMessage(ctx context.Context, org, flow, messageID string) (*RawMessage, error)

	// Call is the escape hatch for arbitrary REST calls. body is JSON
	// encoded when non-nil; the response is decoded into out when
	// non-nil.
	Call(ctx context.Context, method, path string, body, out any) error
}

// MessageEdit is the partial-update payload for message edits. Zero
// fields are omitted from the request.
type MessageEdit struct {
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// EventStream is a live event subscription. Events is closed when the
// stream terminates for any reason; Errors delivers at most one
// transport error before that. Close is idempotent and stops further
// delivery.
type EventStream interface {
	Events() <-chan *RawMessage
	Errors() <-chan error
	Close()
}
