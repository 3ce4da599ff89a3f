package treestore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store holds the single tree. All operations take the store mutex for their
// whole duration, traversals included, so every operation observes and leaves
// a consistent tree; there is no snapshot isolation because nothing ever
// suspends mid-walk. Throughput is deliberately traded for this simplicity.
type Store struct {
	mu      sync.Mutex
	nodes   map[string]*Node
	parents map[string]string // node id -> parent id, "" for the root
	rootID  string

	subMu       sync.RWMutex
	subscribers map[string]Subscriber
	jsSubs      map[string]SavedJSSubscription

	eventQueue chan Event
	done       chan struct{}
	wg         sync.WaitGroup

	jqCache *jqQueryCache
}

// Stats is a point-in-time summary of the tree, served by the stats endpoint
// and mirrored into the prometheus gauges.
type Stats struct {
	Nodes  int    `json:"nodes"`
	Depth  int    `json:"depth"`
	RootID string `json:"root,omitempty"`
}

// New creates an empty store and starts its event dispatcher.
func New() *Store {
	s := &Store{
		nodes:       make(map[string]*Node),
		parents:     make(map[string]string),
		subscribers: make(map[string]Subscriber),
		jsSubs:      make(map[string]SavedJSSubscription),
		eventQueue:  make(chan Event, 1000),
		done:        make(chan struct{}),
		jqCache:     newJQQueryCache(64),
	}
	s.wg.Add(1)
	go s.eventDispatcher()
	return s
}

// Close stops the event dispatcher and closes all channel-backed subscribers.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, subscriber := range s.subscribers {
		if chSub, ok := subscriber.(*ChannelSubscriber); ok {
			chSub.Close()
		}
		if jsSub, ok := subscriber.(*JSSubscriber); ok {
			jsSub.Close()
		}
	}
	return nil
}

// CreateRoot creates the root node. It fails with ErrRootExists when a root
// is already present, regardless of interleaving.
func (s *Store) CreateRoot(value int) (Node, error) {
	s.mu.Lock()
	if s.rootID != "" {
		s.mu.Unlock()
		return Node{}, ErrRootExists
	}

	node := &Node{ID: uuid.NewString(), Value: value}
	s.nodes[node.ID] = node
	s.parents[node.ID] = "" // the root has an explicit "no parent" entry
	s.rootID = node.ID
	snapshot := *node
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventCreate, NodeID: snapshot.ID, Value: value})
	return snapshot, nil
}

// CreateChild attaches a new node to the given side of an existing parent.
// It fails with ErrNotFound when the parent id is unknown and with
// ErrSlotOccupied when the requested slot already holds a child.
func (s *Store) CreateChild(parentID string, side Side, value int) (Node, error) {
	s.mu.Lock()
	parent, ok := s.nodes[parentID]
	if !ok {
		s.mu.Unlock()
		return Node{}, fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
	}

	var slot *string
	switch side {
	case SideLeft:
		slot = &parent.LeftID
	case SideRight:
		slot = &parent.RightID
	default:
		s.mu.Unlock()
		return Node{}, ErrInvalidSide
	}
	if *slot != "" {
		s.mu.Unlock()
		return Node{}, fmt.Errorf("%s slot of %s: %w", side, parentID, ErrSlotOccupied)
	}

	node := &Node{ID: uuid.NewString(), Value: value}
	*slot = node.ID
	s.nodes[node.ID] = node
	s.parents[node.ID] = parentID
	snapshot := *node
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventCreate, NodeID: snapshot.ID, ParentID: parentID, Side: side, Value: value})
	return snapshot, nil
}

// GetNode looks up a node by id. Pure lookup, no failure mode.
func (s *Store) GetNode(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// GetRoot returns the root node, if any.
func (s *Store) GetRoot() (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootID == "" {
		return Node{}, false
	}
	return *s.nodes[s.rootID], true
}

// GetParentAndNode resolves a node together with its parent. The three cases
// are distinct: unknown id yields (nil, nil), the root yields (nil, node),
// any other node yields (parent, node). Callers depend on this distinction
// for their 404-versus-no-content mapping.
func (s *Store) GetParentAndNode(id string) (parent, node *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	nc := *n
	parentID := s.parents[id]
	if parentID == "" {
		return nil, &nc
	}
	pc := *s.nodes[parentID]
	return &pc, &nc
}

// Update mutates a node value in place. It returns false when the id is
// unknown; the structure is never affected.
func (s *Store) Update(id string, value int) bool {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	node.Value = value
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventUpdate, NodeID: id, Value: value})
	return true
}

// Delete detaches the node from its parent (or clears the root) and removes
// the whole subtree from both indexes. Children are never re-parented. It
// returns false when the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	if parentID := s.parents[id]; parentID == "" {
		s.rootID = ""
	} else {
		parent := s.nodes[parentID]
		if parent.LeftID == id {
			parent.LeftID = ""
		} else if parent.RightID == id {
			parent.RightID = ""
		}
	}

	removed := 0
	s.removeSubtree(node, &removed)
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventDelete, NodeID: id, Value: removed})
	return true
}

// removeSubtree unlinks a node and all its descendants from both maps.
// Caller holds the store mutex.
func (s *Store) removeSubtree(node *Node, removed *int) {
	if left, ok := s.nodes[node.LeftID]; ok {
		s.removeSubtree(left, removed)
	}
	if right, ok := s.nodes[node.RightID]; ok {
		s.removeSubtree(right, removed)
	}
	delete(s.nodes, node.ID)
	delete(s.parents, node.ID)
	*removed++
}

// Traverse returns the depth-first visitation sequence for the given order
// token (preorder, inorder or postorder, case-insensitive). An empty tree
// yields an empty sequence.
func (s *Store) Traverse(order string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Node, 0, len(s.nodes))
	root, ok := s.nodes[s.rootID]
	if !ok {
		// Still reject a bad token on an empty tree.
		if err := validOrder(order); err != nil {
			return nil, err
		}
		return out, nil
	}

	switch strings.ToLower(order) {
	case "preorder":
		s.walkPreorder(root, &out)
	case "inorder":
		s.walkInorder(root, &out)
	case "postorder":
		s.walkPostorder(root, &out)
	default:
		return nil, fmt.Errorf("%q: %w", order, ErrInvalidOrder)
	}
	return out, nil
}

func validOrder(order string) error {
	switch strings.ToLower(order) {
	case "preorder", "inorder", "postorder":
		return nil
	}
	return fmt.Errorf("%q: %w", order, ErrInvalidOrder)
}

func (s *Store) walkPreorder(n *Node, out *[]Node) {
	*out = append(*out, *n)
	if left, ok := s.nodes[n.LeftID]; ok {
		s.walkPreorder(left, out)
	}
	if right, ok := s.nodes[n.RightID]; ok {
		s.walkPreorder(right, out)
	}
}

func (s *Store) walkInorder(n *Node, out *[]Node) {
	if left, ok := s.nodes[n.LeftID]; ok {
		s.walkInorder(left, out)
	}
	*out = append(*out, *n)
	if right, ok := s.nodes[n.RightID]; ok {
		s.walkInorder(right, out)
	}
}

func (s *Store) walkPostorder(n *Node, out *[]Node) {
	if left, ok := s.nodes[n.LeftID]; ok {
		s.walkPostorder(left, out)
	}
	if right, ok := s.nodes[n.RightID]; ok {
		s.walkPostorder(right, out)
	}
	*out = append(*out, *n)
}

// TraverseViews is Traverse with parent ids resolved, computed under the same
// single lock acquisition so the sequence and its parent links are consistent.
func (s *Store) TraverseViews(order string) ([]NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validOrder(order); err != nil {
		return nil, err
	}

	out := make([]Node, 0, len(s.nodes))
	if root, ok := s.nodes[s.rootID]; ok {
		switch strings.ToLower(order) {
		case "preorder":
			s.walkPreorder(root, &out)
		case "inorder":
			s.walkInorder(root, &out)
		case "postorder":
			s.walkPostorder(root, &out)
		}
	}

	views := make([]NodeView, len(out))
	for i, n := range out {
		views[i] = n.view(s.parentIDOf(n.ID))
	}
	return views, nil
}

// GetAllNodesBreadthFirst enumerates the tree in level order: a FIFO queue
// seeded with the root, each dequeued node enqueueing its present children
// left then right.
func (s *Store) GetAllNodesBreadthFirst() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Node, 0, len(s.nodes))
	root, ok := s.nodes[s.rootID]
	if !ok {
		return out
	}

	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, *n)
		if left, ok := s.nodes[n.LeftID]; ok {
			queue = append(queue, left)
		}
		if right, ok := s.nodes[n.RightID]; ok {
			queue = append(queue, right)
		}
	}
	return out
}

// Views returns the flattened level-order representations with parent ids
// resolved through the reverse index.
func (s *Store) Views() []NodeView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]NodeView, 0, len(s.nodes))
	root, ok := s.nodes[s.rootID]
	if !ok {
		return out
	}

	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n.view(s.parentIDOf(n.ID)))
		if left, ok := s.nodes[n.LeftID]; ok {
			queue = append(queue, left)
		}
		if right, ok := s.nodes[n.RightID]; ok {
			queue = append(queue, right)
		}
	}
	return out
}

// View resolves a single flattened representation.
func (s *Store) View(id string) (NodeView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return NodeView{}, false
	}
	return node.view(s.parentIDOf(id)), true
}

// parentIDOf returns the parent id as an optional. Caller holds the mutex.
func (s *Store) parentIDOf(id string) *string {
	parentID := s.parents[id]
	if parentID == "" {
		return nil
	}
	return &parentID
}

// Len reports the number of nodes in the tree.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Stats summarizes the current tree.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Nodes:  len(s.nodes),
		Depth:  s.depth(s.nodes[s.rootID]),
		RootID: s.rootID,
	}
}

func (s *Store) depth(n *Node) int {
	if n == nil {
		return 0
	}
	d := 0
	if left, ok := s.nodes[n.LeftID]; ok {
		d = s.depth(left)
	}
	if right, ok := s.nodes[n.RightID]; ok {
		if rd := s.depth(right); rd > d {
			d = rd
		}
	}
	return d + 1
}
