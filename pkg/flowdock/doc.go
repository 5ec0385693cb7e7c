// Copyright 2024-2026 Aiku AI

// Package flowdock is a stateful client for the Flowdock chat backend.
//
// The client keeps a local snapshot of organizational state (flows,
// their members, and a by-id user index), subscribes to the live event
// stream for a policy-selected flow set, and normalizes heterogeneous
// backend event shapes into the stable [Message] and [User] model.
//
// # Core Types
//
// [Client] owns the snapshot and the single live subscription. Reloads
// rebuild the snapshot wholesale and replace the subscription; events
// for flows added or removed on the backend trigger such a reload
// automatically.
//
// [Session] is the transport boundary. The built-in implementation
// talks to the Flowdock REST and streaming APIs; tests and alternative
// transports can inject their own via [WithSession].
//
// # Events
//
// Normalized events are published on a typed event bus with a closed
// set of kinds: [LoadEvent], [Message], [ErrorEvent], and [RawEvent]
// for backend event types without built-in handling. Subscribe with
// [Client.OnLoad], [Client.OnMessage], [Client.OnError], and
// [Client.OnRaw]. Stream events originated by the current user are
// suppressed before publication.
//
// # Commands
//
// Send, edit, tag, and room-addressing operations resolve their targets
// against the snapshot, issue the minimum backend calls, and
// re-normalize message-shaped results before returning. Command
// failures surface to the caller only; they are never broadcast on the
// event bus and never change the snapshot.
package flowdock
