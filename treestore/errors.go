// Package treestore implements an in-memory binary tree store: a node arena
// indexed by opaque identifiers, a parent index, and a single designated root,
// all guarded by one coarse mutex. Mutations are published to subscribers.
package treestore

import "errors"

// Structural errors
var (
	// ErrRootExists indicates that CreateRoot was called while a root is present.
	ErrRootExists = errors.New("root node already exists")

	// ErrNotFound indicates that a referenced node id is not in the store.
	ErrNotFound = errors.New("node not found")

	// ErrSlotOccupied indicates that the requested child slot already holds a node.
	ErrSlotOccupied = errors.New("child slot already occupied")
)

// Argument errors
var (
	// ErrInvalidOrder indicates an unrecognized traversal order token.
	ErrInvalidOrder = errors.New("invalid traversal order")

	// ErrInvalidSide indicates a child side token other than left or right.
	ErrInvalidSide = errors.New("invalid child side")
)

// Subscription errors
var (
	// ErrSubscriptionExists indicates a duplicate JS subscription id.
	ErrSubscriptionExists = errors.New("subscription already exists")

	// ErrSubscriptionNotFound indicates an unknown JS subscription id.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
