// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	eventbus "github.com/jilio/ebu"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrEnded is returned by operations invoked after End.
var ErrEnded = errors.New("flowdock: client has been ended")

// Client is a stateful wrapper around one authenticated Flowdock
// session. It keeps a local snapshot of flows and users, maintains
// exactly one live event subscription scoped to the configured flow
// set, and normalizes backend events into the public Message/User
// model.
type Client struct {
	cfg     Config
	session Session
	state   *stateStore
	bus     *eventbus.EventBus
	log     zerolog.Logger

	// mu guards the live subscription and the ended flag. The snapshot
	// has its own lock inside stateStore.
	mu         sync.Mutex
	stream     EventStream
	listenDone chan struct{}
	ended      bool

	// reloads coalesces concurrent reloads: a burst of flow-add and
	// source-remove events triggers one flow fetch, not one per event.
	// fetchSeq numbers fetch starts so a caller can tell whether the
	// flight it joined began before or after its own entry.
	reloads  singleflight.Group
	fetchSeq atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithSession injects a transport session, replacing the built-in REST
// implementation. Intended for tests and alternative transports.
func WithSession(session Session) Option {
	return func(c *Client) {
		c.session = session
	}
}

// NewClient creates a client from the given configuration. The client
// holds no remote state until Connect performs the first reload.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c := &Client{
		cfg:   cfg,
		state: &stateStore{},
		bus:   eventbus.New(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		if cfg.Token == "" {
			return nil, ErrNoToken
		}
		c.session = newRESTSession(cfg, c.log)
	}
	return c, nil
}

// Connect performs the initial reload, which populates the snapshot and
// opens the live subscription.
func (c *Client) Connect(ctx context.Context) error {
	return c.Reload(ctx)
}

// Reload fetches the current user id and full flow list, rebuilds the
// snapshot, and replaces the live subscription to match the new flow
// set. On any failure the previous snapshot and subscription are left
// untouched; nothing partial is applied.
//
// Concurrent calls coalesce, but every call is guaranteed a fetch that
// started no earlier than the call itself: a caller that joined a fetch
// already in flight runs again, because that fetch's result may predate
// the state change that prompted the caller. A failed reload is not
// retried; the snapshot stays stale until the next trigger.
func (c *Client) Reload(ctx context.Context) error {
	for {
		entered := c.fetchSeq.Load()
		gen, err, _ := c.reloads.Do("reload", func() (any, error) {
			return c.fetchSeq.Add(1), c.reload(ctx)
		})
		if err != nil {
			return err
		}
		if gen.(uint64) > entered {
			return nil
		}
	}
}

func (c *Client) reload(ctx context.Context) error {
	userID, flows, err := c.session.Flows(ctx)
	if err != nil {
		return fmt.Errorf("fetch flows: %w", err)
	}
	c.state.applySnapshot(formatState(userID, flows))
	if err := c.resubscribe(ctx); err != nil {
		return err
	}
	flowCount, userCount := c.state.counts()
	c.log.Debug().
		Int("flows", flowCount).
		Int("users", userCount).
		Msg("State reloaded")
	eventbus.Publish(c.bus, LoadEvent{Flows: flowCount, Users: userCount})
	return nil
}

// selectedFlowIDs evaluates the room-selection policy against the
// current snapshot: the configured allow-list resolved through the
// identifier matcher, or every joined flow when no list is configured.
func (c *Client) selectedFlowIDs() []string {
	flows := c.state.flowList()
	ids := make([]string, 0, len(flows))
	for i := range flows {
		if c.flowSelected(&flows[i]) {
			ids = append(ids, string(flows[i].ID))
		}
	}
	return ids
}

func (c *Client) flowSelected(flow *Flow) bool {
	if len(c.cfg.Flows) == 0 {
		return flow.Joined
	}
	for _, identifier := range c.cfg.Flows {
		if matchFlow(flow, identifier) {
			return true
		}
	}
	return false
}

// resubscribe replaces the live subscription with one scoped to the
// just-applied snapshot's selected flow set. The previous subscription
// is fully detached before the new one attaches: its listener has
// exited, so no event read from it can be dispatched after the
// replacement is live.
func (c *Client) resubscribe(ctx context.Context) error {
	flowIDs := c.selectedFlowIDs()

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrEnded
	}
	old, oldDone := c.stream, c.listenDone
	c.stream, c.listenDone = nil, nil
	c.mu.Unlock()

	if old != nil {
		old.Close()
		<-oldDone
	}

	stream, err := c.session.Stream(ctx, flowIDs, c.cfg.Stream)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	done := make(chan struct{})

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		stream.Close()
		return ErrEnded
	}
	c.stream = stream
	c.listenDone = done
	c.mu.Unlock()

	c.log.Debug().Strs("flow_ids", flowIDs).Msg("Subscription replaced")
	go c.listen(stream, done)
	return nil
}

// isCurrent reports whether the given stream is still the live
// subscription. A listener for a replaced stream stops dispatching as
// soon as the swap is visible.
func (c *Client) isCurrent(stream EventStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream == stream
}

// listen dispatches one stream's events until the stream terminates or
// is replaced. Closing done signals that no further dispatch from this
// stream can happen; resubscribe waits on it before attaching the
// replacement.
func (c *Client) listen(stream EventStream, done chan struct{}) {
	defer close(done)
	for {
		select {
		case evt, ok := <-stream.Events():
			if !ok {
				// The terminal error, if any, was queued before the
				// event channel closed.
				select {
				case err := <-stream.Errors():
					if err != nil && c.isCurrent(stream) {
						c.emitError(fmt.Errorf("stream: %w", err))
					}
				default:
				}
				return
			}
			if !c.isCurrent(stream) {
				return
			}
			c.handleEvent(evt)
		case err := <-stream.Errors():
			if err != nil && c.isCurrent(stream) {
				c.emitError(fmt.Errorf("stream: %w", err))
			}
			return
		}
	}
}

func (c *Client) emitError(err error) {
	c.log.Error().Err(err).Msg("Client error")
	eventbus.Publish(c.bus, ErrorEvent{Err: err})
}

// Flows returns a copy of the flow list from the current snapshot.
func (c *Client) Flows() []Flow {
	return c.state.flowList()
}

// End detaches the live subscription and marks the client terminal: no
// further reloads will open a new one. Idempotent. Outstanding command
// calls are not cancelled.
func (c *Client) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = true
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
		c.listenDone = nil
	}
}
