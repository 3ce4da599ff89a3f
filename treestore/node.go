package treestore

import "strings"

// Side selects which child slot of a parent a new node is attached to.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide normalizes a side token. Matching is case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return "", ErrInvalidSide
	}
}

// Node is one element of the tree. Child links are stored as identifiers
// rather than pointers, so a Node value is a self-contained snapshot that can
// be handed to callers without exposing store internals. An empty LeftID or
// RightID means the slot is free.
type Node struct {
	ID      string `json:"id"`
	Value   int    `json:"value"`
	LeftID  string `json:"left,omitempty"`
	RightID string `json:"right,omitempty"`
}

// NodeView is the flattened representation served over the API: the node
// itself plus the parent id derived from the reverse index. Recursive payloads
// are never emitted.
type NodeView struct {
	ID       string  `json:"id"`
	Value    int     `json:"value"`
	LeftID   string  `json:"left,omitempty"`
	RightID  string  `json:"right,omitempty"`
	ParentID *string `json:"parent,omitempty"`
}

// AsView flattens the node with the given parent id, "" meaning no parent.
// It lets callers holding a Node snapshot build the representation without
// another store lookup.
func (n Node) AsView(parentID string) NodeView {
	v := NodeView{
		ID:      n.ID,
		Value:   n.Value,
		LeftID:  n.LeftID,
		RightID: n.RightID,
	}
	if parentID != "" {
		v.ParentID = &parentID
	}
	return v
}

func (n Node) view(parentID *string) NodeView {
	if parentID == nil {
		return n.AsView("")
	}
	return n.AsView(*parentID)
}
