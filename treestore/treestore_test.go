package treestore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New()
	t.Cleanup(func() { store.Close() })
	return store
}

// buildSampleTree builds the canonical three-node tree:
//
//	root(10) with left(5) and right(15)
func buildSampleTree(t *testing.T, store *Store) (root, left, right Node) {
	t.Helper()

	root, err := store.CreateRoot(10)
	require.NoError(t, err)
	left, err = store.CreateChild(root.ID, SideLeft, 5)
	require.NoError(t, err)
	right, err = store.CreateChild(root.ID, SideRight, 15)
	require.NoError(t, err)
	return root, left, right
}

func TestCreateRoot(t *testing.T) {
	t.Run("succeeds on an empty store", func(t *testing.T) {
		store := newTestStore(t)

		root, err := store.CreateRoot(42)
		require.NoError(t, err)
		require.NotEmpty(t, root.ID)
		assert.Equal(t, 42, root.Value)
		assert.Empty(t, root.LeftID)
		assert.Empty(t, root.RightID)
	})

	t.Run("round-trip through GetNode", func(t *testing.T) {
		store := newTestStore(t)

		root, err := store.CreateRoot(7)
		require.NoError(t, err)

		got, ok := store.GetNode(root.ID)
		require.True(t, ok)
		assert.Equal(t, 7, got.Value)
		assert.Empty(t, got.LeftID)
		assert.Empty(t, got.RightID)
	})

	t.Run("second attempt always fails", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.CreateRoot(1)
		require.NoError(t, err)

		_, err = store.CreateRoot(2)
		require.ErrorIs(t, err, ErrRootExists)
	})

	t.Run("exactly one winner under contention", func(t *testing.T) {
		store := newTestStore(t)

		const goroutines = 16
		var wg sync.WaitGroup
		errs := make([]error, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.CreateRoot(i)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, ErrRootExists)
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, 1, store.Len())
	})
}

func TestCreateChild(t *testing.T) {
	t.Run("attaches to both sides", func(t *testing.T) {
		store := newTestStore(t)
		root, left, right := buildSampleTree(t, store)

		got, ok := store.GetNode(root.ID)
		require.True(t, ok)
		assert.Equal(t, left.ID, got.LeftID)
		assert.Equal(t, right.ID, got.RightID)
	})

	t.Run("unknown parent", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.CreateChild("no-such-id", SideLeft, 1)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("occupied slot is rejected", func(t *testing.T) {
		store := newTestStore(t)
		root, _, _ := buildSampleTree(t, store)

		_, err := store.CreateChild(root.ID, SideLeft, 99)
		require.ErrorIs(t, err, ErrSlotOccupied)
		_, err = store.CreateChild(root.ID, SideRight, 99)
		require.ErrorIs(t, err, ErrSlotOccupied)
	})

	t.Run("invalid side is rejected", func(t *testing.T) {
		store := newTestStore(t)
		root, err := store.CreateRoot(1)
		require.NoError(t, err)

		_, err = store.CreateChild(root.ID, Side("up"), 1)
		require.ErrorIs(t, err, ErrInvalidSide)
	})
}

func TestParseSide(t *testing.T) {
	for _, token := range []string{"left", "LEFT", " Left "} {
		side, err := ParseSide(token)
		require.NoError(t, err)
		assert.Equal(t, SideLeft, side)
	}

	side, err := ParseSide("Right")
	require.NoError(t, err)
	assert.Equal(t, SideRight, side)

	_, err = ParseSide("middle")
	require.ErrorIs(t, err, ErrInvalidSide)
}

func TestGetParentAndNode(t *testing.T) {
	store := newTestStore(t)
	root, left, _ := buildSampleTree(t, store)

	t.Run("unknown id yields nil, nil", func(t *testing.T) {
		parent, node := store.GetParentAndNode("no-such-id")
		assert.Nil(t, parent)
		assert.Nil(t, node)
	})

	t.Run("root yields nil parent and the node", func(t *testing.T) {
		parent, node := store.GetParentAndNode(root.ID)
		assert.Nil(t, parent)
		require.NotNil(t, node)
		assert.Equal(t, root.ID, node.ID)
	})

	t.Run("child yields both", func(t *testing.T) {
		parent, node := store.GetParentAndNode(left.ID)
		require.NotNil(t, parent)
		require.NotNil(t, node)
		assert.Equal(t, root.ID, parent.ID)
		assert.Equal(t, left.ID, node.ID)
	})
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	root, left, _ := buildSampleTree(t, store)

	t.Run("mutates value in place", func(t *testing.T) {
		require.True(t, store.Update(left.ID, 500))

		got, ok := store.GetNode(left.ID)
		require.True(t, ok)
		assert.Equal(t, 500, got.Value)
	})

	t.Run("structure is untouched", func(t *testing.T) {
		got, ok := store.GetNode(root.ID)
		require.True(t, ok)
		assert.Equal(t, left.ID, got.LeftID)
		assert.Equal(t, 3, store.Len())
	})

	t.Run("silent false on unknown id", func(t *testing.T) {
		assert.False(t, store.Update("no-such-id", 1))
	})
}

func TestDelete(t *testing.T) {
	t.Run("silent false on unknown id", func(t *testing.T) {
		store := newTestStore(t)
		assert.False(t, store.Delete("no-such-id"))
	})

	t.Run("subtree delete removes all descendants", func(t *testing.T) {
		store := newTestStore(t)
		root, left, right := buildSampleTree(t, store)
		grandchild, err := store.CreateChild(left.ID, SideLeft, 1)
		require.NoError(t, err)

		require.True(t, store.Delete(left.ID))

		_, ok := store.GetNode(left.ID)
		assert.False(t, ok)
		_, ok = store.GetNode(grandchild.ID)
		assert.False(t, ok)

		// The rest of the tree is intact and the parent link is cleared.
		got, ok := store.GetNode(root.ID)
		require.True(t, ok)
		assert.Empty(t, got.LeftID)
		assert.Equal(t, right.ID, got.RightID)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("deleting the root empties the store", func(t *testing.T) {
		store := newTestStore(t)
		root, left, right := buildSampleTree(t, store)

		require.True(t, store.Delete(root.ID))

		for _, id := range []string{root.ID, left.ID, right.ID} {
			_, ok := store.GetNode(id)
			assert.False(t, ok)
		}
		_, ok := store.GetRoot()
		assert.False(t, ok)
		assert.Equal(t, 0, store.Len())

		// The slot is free again.
		_, err := store.CreateRoot(1)
		require.NoError(t, err)
	})

	t.Run("children are not promoted", func(t *testing.T) {
		store := newTestStore(t)
		root, left, _ := buildSampleTree(t, store)
		_, err := store.CreateChild(left.ID, SideRight, 2)
		require.NoError(t, err)

		require.True(t, store.Delete(left.ID))

		got, ok := store.GetNode(root.ID)
		require.True(t, ok)
		assert.Empty(t, got.LeftID)
	})
}

func TestTraverse(t *testing.T) {
	store := newTestStore(t)
	root, left, right := buildSampleTree(t, store)

	ids := func(nodes []Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.ID
		}
		return out
	}

	t.Run("preorder", func(t *testing.T) {
		nodes, err := store.Traverse("preorder")
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID, left.ID, right.ID}, ids(nodes))
	})

	t.Run("inorder", func(t *testing.T) {
		nodes, err := store.Traverse("inorder")
		require.NoError(t, err)
		assert.Equal(t, []string{left.ID, root.ID, right.ID}, ids(nodes))
	})

	t.Run("postorder", func(t *testing.T) {
		nodes, err := store.Traverse("postorder")
		require.NoError(t, err)
		assert.Equal(t, []string{left.ID, right.ID, root.ID}, ids(nodes))
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		nodes, err := store.Traverse("InOrder")
		require.NoError(t, err)
		assert.Equal(t, []string{left.ID, root.ID, right.ID}, ids(nodes))
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		_, err := store.Traverse("sideways")
		require.ErrorIs(t, err, ErrInvalidOrder)
	})

	t.Run("unknown token is rejected on an empty tree too", func(t *testing.T) {
		empty := newTestStore(t)
		_, err := empty.Traverse("sideways")
		require.ErrorIs(t, err, ErrInvalidOrder)
	})

	t.Run("empty tree yields empty sequence", func(t *testing.T) {
		empty := newTestStore(t)
		nodes, err := empty.Traverse("preorder")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("reads are idempotent", func(t *testing.T) {
		first, err := store.Traverse("inorder")
		require.NoError(t, err)
		second, err := store.Traverse("inorder")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("deeper trees recurse", func(t *testing.T) {
		deep := newTestStore(t)
		r, l, q := buildSampleTree(t, deep)
		g, err := deep.CreateChild(l.ID, SideLeft, 3)
		require.NoError(t, err)

		nodes, err := deep.Traverse("postorder")
		require.NoError(t, err)
		assert.Equal(t, []string{g.ID, l.ID, q.ID, r.ID}, ids(nodes))
	})
}

func TestGetAllNodesBreadthFirst(t *testing.T) {
	t.Run("empty tree", func(t *testing.T) {
		store := newTestStore(t)
		assert.Empty(t, store.GetAllNodesBreadthFirst())
	})

	t.Run("level order, left before right", func(t *testing.T) {
		store := newTestStore(t)
		root, left, right := buildSampleTree(t, store)
		grandchild, err := store.CreateChild(left.ID, SideLeft, 1)
		require.NoError(t, err)

		nodes := store.GetAllNodesBreadthFirst()
		require.Len(t, nodes, 4)
		assert.Equal(t, root.ID, nodes[0].ID)
		assert.Equal(t, left.ID, nodes[1].ID)
		assert.Equal(t, right.ID, nodes[2].ID)
		assert.Equal(t, grandchild.ID, nodes[3].ID)
	})
}

func TestViews(t *testing.T) {
	store := newTestStore(t)
	root, left, _ := buildSampleTree(t, store)

	t.Run("parent ids are resolved", func(t *testing.T) {
		views := store.Views()
		require.Len(t, views, 3)

		assert.Nil(t, views[0].ParentID)
		require.NotNil(t, views[1].ParentID)
		assert.Equal(t, root.ID, *views[1].ParentID)
	})

	t.Run("single view", func(t *testing.T) {
		view, ok := store.View(left.ID)
		require.True(t, ok)
		require.NotNil(t, view.ParentID)
		assert.Equal(t, root.ID, *view.ParentID)

		_, ok = store.View("no-such-id")
		assert.False(t, ok)
	})
}

func TestTraverseViews(t *testing.T) {
	store := newTestStore(t)
	root, left, right := buildSampleTree(t, store)

	views, err := store.TraverseViews("inorder")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, left.ID, views[0].ID)
	assert.Equal(t, root.ID, views[1].ID)
	assert.Equal(t, right.ID, views[2].ID)
	require.NotNil(t, views[0].ParentID)
	assert.Equal(t, root.ID, *views[0].ParentID)

	_, err = store.TraverseViews("diagonal")
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, Stats{}, store.Stats())

	root, left, _ := buildSampleTree(t, store)
	_, err := store.CreateChild(left.ID, SideLeft, 1)
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 3, stats.Depth)
	assert.Equal(t, root.ID, stats.RootID)
}

// TestEndToEnd runs the canonical scenario: build the three-node tree, check
// the inorder walk, delete the root, observe an empty store.
func TestEndToEnd(t *testing.T) {
	store := newTestStore(t)

	a, err := store.CreateRoot(10)
	require.NoError(t, err)
	b, err := store.CreateChild(a.ID, SideLeft, 5)
	require.NoError(t, err)
	c, err := store.CreateChild(a.ID, SideRight, 15)
	require.NoError(t, err)

	nodes, err := store.Traverse("inorder")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []int{5, 10, 15}, []int{nodes[0].Value, nodes[1].Value, nodes[2].Value})

	require.True(t, store.Delete(a.ID))

	_, ok := store.GetNode(b.ID)
	assert.False(t, ok)
	_, ok = store.GetNode(c.ID)
	assert.False(t, ok)
	assert.Empty(t, store.GetAllNodesBreadthFirst())
}

// TestConcurrentMutations hammers the store from many goroutines; the race
// detector and the final consistency checks catch torn updates.
func TestConcurrentMutations(t *testing.T) {
	store := newTestStore(t)
	root, err := store.CreateRoot(0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch j % 4 {
				case 0:
					store.CreateChild(root.ID, SideLeft, j)
				case 1:
					store.CreateChild(root.ID, SideRight, j)
				case 2:
					store.Update(root.ID, j)
				default:
					store.Traverse("preorder")
				}
			}
		}(i)
	}
	wg.Wait()

	// At most root plus one child per side can exist.
	assert.LessOrEqual(t, store.Len(), 3)
	nodes := store.GetAllNodesBreadthFirst()
	assert.Equal(t, store.Len(), len(nodes))
}

func TestNodeAsView(t *testing.T) {
	store := newTestStore(t)
	root, err := store.CreateRoot(10)
	require.NoError(t, err)
	child, err := store.CreateChild(root.ID, SideLeft, 5)
	require.NoError(t, err)

	view := child.AsView(root.ID)
	assert.Equal(t, child.ID, view.ID)
	assert.Equal(t, 5, view.Value)
	require.NotNil(t, view.ParentID)
	assert.Equal(t, root.ID, *view.ParentID)

	rootView := root.AsView("")
	assert.Nil(t, rootView.ParentID)

	// The flattened form is built from the snapshot alone, so it stays intact
	// after a delete; callers can serve it without re-reading the store.
	require.True(t, store.Delete(root.ID))
	view = child.AsView(root.ID)
	assert.Equal(t, child.ID, view.ID)
	assert.Equal(t, 5, view.Value)
}
