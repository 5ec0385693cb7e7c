// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// userTagPrefix marks a "mentioned user" tag in a message's tag list.
const userTagPrefix = ":user:"

var errNoRawRecord = errors.New("flowdock: message is missing its backend record")

// Send replies to a message: as a direct message when the original was
// addressed to a specific user, otherwise as a threaded reply in the
// original's flow. Returns the stored message re-normalized.
func (c *Client) Send(ctx context.Context, msg Message, text string) (Message, error) {
	raw, err := c.sendReply(ctx, msg, text)
	if err != nil {
		return Message{}, err
	}
	return formatMessage(c.state, raw), nil
}

func (c *Client) sendReply(ctx context.Context, msg Message, text string) (*RawMessage, error) {
	if msg.Raw == nil {
		return nil, errNoRawRecord
	}
	if msg.Raw.Direct() {
		if msg.Author == nil {
			return nil, errors.New("flowdock: direct reply requires a resolved author")
		}
		return c.session.SendPrivateMessage(ctx, msg.Author.ID, text, nil)
	}
	return c.session.SendThreadMessage(ctx, msg.Raw.Flow, msg.Raw.ThreadID, text, nil)
}

// Edit replaces a message's content. Flow messages are re-fetched after
// the edit so the returned Message reflects the authoritative stored
// representation; direct-message edits trust the edit call and
// substitute the text locally.
func (c *Client) Edit(ctx context.Context, msg Message, text string) (Message, error) {
	if msg.Raw == nil {
		return Message{}, errNoRawRecord
	}

	if msg.Raw.Direct() {
		err := c.session.EditPrivateMessage(ctx, string(msg.Raw.To), msg.ID, MessageEdit{Content: text})
		if err != nil {
			return Message{}, fmt.Errorf("edit private message: %w", err)
		}
		edited := msg
		edited.Text = text
		return edited, nil
	}

	org, flow, err := c.flowAddress(msg.Raw.Flow)
	if err != nil {
		return Message{}, err
	}
	if err := c.session.EditMessage(ctx, org, flow, msg.ID, MessageEdit{Content: text}); err != nil {
		return Message{}, fmt.Errorf("edit message: %w", err)
	}
	raw, err := c.session.GetMessage(ctx, org, flow, msg.ID)
	if err != nil {
		return Message{}, fmt.Errorf("fetch edited message: %w", err)
	}
	return formatMessage(c.state, raw), nil
}

// Tag appends tags to a flow message's tag set. Tags the message
// already carries are kept; duplicates are not added. Only defined for
// flow messages.
func (c *Client) Tag(ctx context.Context, msg Message, tags ...string) error {
	if msg.Raw == nil {
		return errNoRawRecord
	}
	if msg.Raw.Direct() {
		return errors.New("flowdock: direct messages cannot be tagged")
	}
	org, flow, err := c.flowAddress(msg.Raw.Flow)
	if err != nil {
		return err
	}

	merged := slices.Clone(msg.Raw.Tags)
	for _, tag := range tags {
		if !slices.Contains(merged, tag) {
			merged = append(merged, tag)
		}
	}
	if err := c.session.EditMessage(ctx, org, flow, msg.ID, MessageEdit{Tags: merged}); err != nil {
		return fmt.Errorf("tag message: %w", err)
	}
	return nil
}

// flowAddress resolves a flow id to the parameterized org/flow name
// pair used in message paths.
func (c *Client) flowAddress(flowID string) (org, flow string, err error) {
	f, ok := c.state.flowByID(flowID)
	if !ok {
		return "", "", fmt.Errorf("flowdock: unknown flow %q", flowID)
	}
	return f.Organization.ParameterizedName, f.ParameterizedName, nil
}

// MessageRoom posts a top-level message to a flow named by any
// supported identifier. An identifier that matches no known flow is
// passed through as a flow id, which permits addressing flows not yet
// indexed.
func (c *Client) MessageRoom(ctx context.Context, room, text string) (Message, error) {
	flowID := room
	if flow, ok := findFlow(c.state.flowList(), room); ok {
		flowID = string(flow.ID)
	}
	raw, err := c.session.SendMessage(ctx, flowID, text, nil)
	if err != nil {
		return Message{}, fmt.Errorf("message room: %w", err)
	}
	return formatMessage(c.state, raw), nil
}

// Mention builds the @-mention token for a user.
func (c *Client) Mention(user User) string {
	return "@" + user.Name
}

// Address prefixes text with an @-mention of the user.
func (c *Client) Address(user User, text string) string {
	return c.Mention(user) + ", " + text
}

// IsMentioned reports whether the message's tag list carries the user's
// mention tag.
func (c *Client) IsMentioned(user User, msg Message) bool {
	return msg.Raw != nil && slices.Contains(msg.Raw.Tags, userTagPrefix+user.ID)
}

// Mentions returns the users mentioned by the message, resolved through
// the user index (unknown ids are dropped) and ordered by the position
// of each user's name in the message text. A name absent from the text
// keeps its "not found" position and therefore sorts first; this
// matches the reference behavior.
func (c *Client) Mentions(msg Message) []User {
	if msg.Raw == nil {
		return nil
	}
	var users []User
	for _, tag := range msg.Raw.Tags {
		id, ok := strings.CutPrefix(tag, userTagPrefix)
		if !ok {
			continue
		}
		if user, found := c.state.userByID(id); found {
			users = append(users, user)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.Index(msg.Text, users[i].Name) < strings.Index(msg.Text, users[j].Name)
	})
	return users
}
