// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"context"
	"sync"

	eventbus "github.com/jilio/ebu"
	"github.com/rs/zerolog"
)

// userMap is a plain map implementation of userLookup for formatter
// tests.
type userMap map[string]User

func (m userMap) userByID(id string) (User, bool) {
	user, ok := m[id]
	return user, ok
}

// sentCall records one send-type transport call.
type sentCall struct {
	Kind     string // "message", "thread", "private"
	FlowID   string
	ThreadID string
	UserID   string
	Text     string
	Tags     []string
}

// editCall records one edit-type transport call.
type editCall struct {
	Kind      string // "flow", "private"
	Org       string
	Flow      string
	UserID    string
	MessageID string
	Edit      MessageEdit
}

// fakeSession is an in-memory Session that records every call and
// serves canned responses.
type fakeSession struct {
	mu sync.Mutex

	userID   string
	flows    []Flow
	flowsErr error

	flowsCalls int
	// flowsFetched receives one value per Flows call, so tests can wait
	// for event-triggered reloads.
	flowsFetched chan struct{}
	// flowsBlock, when set, stalls each Flows call after it has
	// captured its response, until the channel yields. Models a fetch
	// whose response predates later backend changes.
	flowsBlock chan struct{}

	streamErr error
	streams   []*fakeStream
	// ops records subscription lifecycle in order: "open", "close".
	ops []string

	sendResult *RawMessage
	sendErr    error
	sent       []sentCall

	editErr error
	edits   []editCall

	getResult *RawMessage
	getErr    error
	gets      []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{flowsFetched: make(chan struct{}, 16)}
}

func (f *fakeSession) Flows(_ context.Context) (string, []Flow, error) {
	f.mu.Lock()
	f.flowsCalls++
	userID, flows, err := f.userID, f.flows, f.flowsErr
	block := f.flowsBlock
	f.mu.Unlock()
	select {
	case f.flowsFetched <- struct{}{}:
	default:
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return "", nil, err
	}
	return userID, flows, nil
}

func (f *fakeSession) Stream(_ context.Context, flowIDs []string, _ map[string]string) (EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	stream := &fakeStream{
		session: f,
		flowIDs: flowIDs,
		events:  make(chan *RawMessage, 16),
		errs:    make(chan error, 1),
	}
	f.streams = append(f.streams, stream)
	f.ops = append(f.ops, "open")
	return stream, nil
}

func (f *fakeSession) SendMessage(_ context.Context, flowID, text string, tags []string) (*RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{Kind: "message", FlowID: flowID, Text: text, Tags: tags})
	return f.sendResult, f.sendErr
}

func (f *fakeSession) SendThreadMessage(_ context.Context, flowID, threadID, text string, tags []string) (*RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{Kind: "thread", FlowID: flowID, ThreadID: threadID, Text: text, Tags: tags})
	return f.sendResult, f.sendErr
}

func (f *fakeSession) SendPrivateMessage(_ context.Context, userID, text string, tags []string) (*RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{Kind: "private", UserID: userID, Text: text, Tags: tags})
	return f.sendResult, f.sendErr
}

func (f *fakeSession) EditMessage(_ context.Context, org, flow, messageID string, edit MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{Kind: "flow", Org: org, Flow: flow, MessageID: messageID, Edit: edit})
	return f.editErr
}

func (f *fakeSession) EditPrivateMessage(_ context.Context, userID, messageID string, edit MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{Kind: "private", UserID: userID, MessageID: messageID, Edit: edit})
	return f.editErr
}

func (f *fakeSession) GetMessage(_ context.Context, org, flow, messageID string) (*RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, org+"/"+flow+"/"+messageID)
	return f.getResult, f.getErr
}

func (f *fakeSession) Call(_ context.Context, _, _ string, _, _ any) error {
	return nil
}

func (f *fakeSession) sentCalls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentCall, len(f.sent))
	copy(cp, f.sent)
	return cp
}

func (f *fakeSession) editCalls() []editCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]editCall, len(f.edits))
	copy(cp, f.edits)
	return cp
}

func (f *fakeSession) lifecycleOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.ops))
	copy(cp, f.ops)
	return cp
}

func (f *fakeSession) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *fakeSession) setFlows(userID string, flows []Flow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = userID
	f.flows = flows
}

func (f *fakeSession) setFlowsBlock(block chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flowsBlock = block
}

func (f *fakeSession) flowsCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flowsCalls
}

// fakeStream is a controllable EventStream.
type fakeStream struct {
	session *fakeSession
	flowIDs []string

	mu         sync.Mutex
	closed     bool
	closeCalls int

	events chan *RawMessage
	errs   chan error
}

func (s *fakeStream) Events() <-chan *RawMessage { return s.events }
func (s *fakeStream) Errors() <-chan error       { return s.errs }

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	if s.session != nil {
		s.session.mu.Lock()
		s.session.ops = append(s.session.ops, "close")
		s.session.mu.Unlock()
	}
}

func (s *fakeStream) emit(evt *RawMessage) {
	s.events <- evt
}

func (s *fakeStream) fail(err error) {
	s.errs <- err
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// newTestClient builds a client around a fake session without going
// through NewClient's token requirement.
func newTestClient(session Session, cfg Config) *Client {
	_ = cfg.PostProcess()
	return &Client{
		cfg:     cfg,
		session: session,
		state:   &stateStore{},
		bus:     eventbus.New(),
		log:     zerolog.Nop(),
	}
}

// testFlows is a two-flow fixture: "main" is joined, "other" is not.
func testFlows() []Flow {
	return []Flow{
		{
			ID:                "flow-main",
			Name:              "Main Flow",
			ParameterizedName: "main",
			Organization:      Organization{ID: "org-1", Name: "Acme", ParameterizedName: "acme"},
			Joined:            true,
			Users: []RawUser{
				{ID: "1", Nick: "alice", Name: "Alice Doe", Email: "alice@example.com"},
				{ID: "42", Nick: "bob", Name: "Bob Roe", Email: "bob@example.com"},
			},
		},
		{
			ID:                "flow-other",
			Name:              "Other Flow",
			ParameterizedName: "other",
			Organization:      Organization{ID: "org-1", Name: "Acme", ParameterizedName: "acme"},
			Joined:            false,
			Users: []RawUser{
				{ID: "7", Nick: "carol", Name: "Carol Poe"},
			},
		},
	}
}
