// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mau.fi/util/jsontime"
)

// ID is a backend identifier. Flowdock serializes some ids as JSON
// strings and others as JSON numbers (message ids are numeric, user ids
// appear both ways depending on the endpoint), so ID accepts either form
// on unmarshal and always marshals as a string.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// RawUser is the backend-native user record as returned by the REST API
// and embedded in flow member lists and join events. Fields beyond these
// are not part of the contract and are ignored.
type RawUser struct {
	ID      ID     `json:"id"`
	Nick    string `json:"nick"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Avatar  string `json:"avatar"`
	Website string `json:"website"`
}

// Organization identifies the org a flow belongs to.
type Organization struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	ParameterizedName string `json:"parameterized_name"`
}

// Flow is the backend-native room record. Flows are stored verbatim in
// the state snapshot and indexed by id; they are not reformatted.
type Flow struct {
	ID                ID           `json:"id"`
	Name              string       `json:"name"`
	ParameterizedName string       `json:"parameterized_name"`
	Organization      Organization `json:"organization"`
	Joined            bool         `json:"joined"`
	Open              bool         `json:"open"`
	URL               string       `json:"url"`
	Users             []RawUser    `json:"users"`
}

// RawMessage is the backend-native message record, shared by REST call
// results and stream events. Content is polymorphic: a JSON string for
// chat messages, an object for structural events such as user joins.
type RawMessage struct {
	ID       ID                 `json:"id"`
	Flow     string             `json:"flow"`
	Event    string             `json:"event"`
	User     ID                 `json:"user"`
	Content  json.RawMessage    `json:"content"`
	Tags     []string           `json:"tags"`
	ThreadID string             `json:"thread_id"`
	To       ID                 `json:"to"`
	UUID     string             `json:"uuid,omitempty"`
	Sent     jsontime.UnixMilli `json:"sent"`
}

// Direct reports whether the message was addressed to a specific user
// rather than posted to a flow.
func (m *RawMessage) Direct() bool {
	return m.To != ""
}

// Text returns the message content as plain text. Non-string content
// (structural events) is returned as its raw JSON encoding.
func (m *RawMessage) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return string(m.Content)
}

// ContentUser extracts the user record embedded in a join event's
// content object.
func (m *RawMessage) ContentUser() (*RawUser, error) {
	var content struct {
		User *RawUser `json:"user"`
	}
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return nil, fmt.Errorf("decode event content: %w", err)
	}
	if content.User == nil {
		return nil, fmt.Errorf("event content has no user record")
	}
	return content.User, nil
}

// User is the stable public user shape. It is constructed once from a
// RawUser and never mutated; Raw preserves the backend-native record.
type User struct {
	ID       string
	Name     string
	FullName string
	Email    string
	Image    string
	URL      string
	Raw      *RawUser
}

// Message is the stable public message shape. Author is nil when the
// sender was not indexed at format time. Messages are values: edits
// produce a new Message rather than mutating an existing one.
type Message struct {
	ID     string
	Author *User
	Text   string
	Raw    *RawMessage
}
