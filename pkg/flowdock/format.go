// Copyright 2024-2026 Aiku AI

package flowdock

// userLookup resolves a backend user id to a formatted User. The state
// store implements it; tests substitute a plain map wrapper.
type userLookup interface {
	userByID(id string) (User, bool)
}

// formatUser converts a backend user record into the public User shape.
// Field renames only; the original record is preserved under Raw.
func formatUser(raw RawUser) User {
	r := raw
	return User{
		ID:       string(raw.ID),
		Name:     raw.Nick,
		FullName: raw.Name,
		Email:    raw.Email,
		Image:    raw.Avatar,
		URL:      raw.Website,
		Raw:      &r,
	}
}

// formatMessage converts a backend message record into the public
// Message shape. The author is resolved through the user index at format
// time; if the sender is not yet indexed the Author field is left nil.
func formatMessage(users userLookup, raw *RawMessage) Message {
	msg := Message{
		ID:   string(raw.ID),
		Text: raw.Text(),
		Raw:  raw,
	}
	if users != nil {
		if author, ok := users.userByID(string(raw.User)); ok {
			msg.Author = &author
		}
	}
	return msg
}

// formatState builds a full state snapshot from the raw flow listing:
// flows indexed by id, every flow's member list flattened, each member
// formatted and indexed by id. The two indexes are always derived
// together from the same flow list.
func formatState(userID string, flows []Flow) snapshot {
	snap := snapshot{
		userID:    userID,
		flows:     flows,
		flowsByID: make(map[string]*Flow, len(flows)),
		usersByID: make(map[string]User),
	}
	for i := range flows {
		snap.flowsByID[string(flows[i].ID)] = &flows[i]
		for _, member := range flows[i].Users {
			user := formatUser(member)
			snap.usersByID[user.ID] = user
		}
	}
	return snap
}
