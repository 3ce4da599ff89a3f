package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bts-lite/treestore"
)

func newTestClient(t *testing.T) (*Client, *treestore.Store) {
	t.Helper()

	server, store := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL)
	require.NoError(t, err)
	return client, store
}

func TestClientRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)

	root, err := client.CreateRoot(10)
	require.NoError(t, err)
	require.NotEmpty(t, root.ID)

	left, err := client.CreateChild(root.ID, "left", 5)
	require.NoError(t, err)
	right, err := client.CreateChild(root.ID, "right", 15)
	require.NoError(t, err)

	got, err := client.GetNode(left.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Value)

	inorder, err := client.Traverse("inorder")
	require.NoError(t, err)
	require.Len(t, inorder, 3)
	assert.Equal(t, []string{left.ID, root.ID, right.ID},
		[]string{inorder[0].ID, inorder[1].ID, inorder[2].ID})

	require.NoError(t, client.UpdateNode(left.ID, 7))
	got, err = client.GetNode(left.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Value)

	require.NoError(t, client.DeleteNode(root.ID))
	nodes, err := client.ListNodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestClientErrorMapping(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetNode("no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = client.UpdateNode("no-such-id", 1)
	assert.Error(t, err)

	err = client.DeleteNode("no-such-id")
	assert.Error(t, err)

	_, err = client.CreateRoot(1)
	require.NoError(t, err)
	_, err = client.CreateRoot(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
}

func TestClientEmptyTreeSemantics(t *testing.T) {
	client, _ := newTestClient(t)

	// 204 surfaces as a nil view without an error.
	root, err := client.GetRoot()
	require.NoError(t, err)
	assert.Nil(t, root)

	created, err := client.CreateRoot(1)
	require.NoError(t, err)

	root, err = client.GetRoot()
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, created.ID, root.ID)

	// The root has no parent, which is not an error either.
	parent, err := client.GetParent(created.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)

	_, err = client.GetParent("no-such-id")
	assert.Error(t, err)
}

func TestClientQueryAndStats(t *testing.T) {
	client, _ := newTestClient(t)

	root, err := client.CreateRoot(10)
	require.NoError(t, err)
	_, err = client.CreateChild(root.ID, "left", 5)
	require.NoError(t, err)

	raw, err := client.Query(`[.[].value] | add`)
	require.NoError(t, err)
	assert.Equal(t, "15", string(raw))

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 2, stats.Depth)
}

func TestClientSubscriptions(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.CreateSubscription("audit", `var t = event.type;`, []string{"create"})
	require.NoError(t, err)

	subs, err := client.ListSubscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "audit", subs[0].ID)

	require.NoError(t, client.DeleteSubscription("audit"))
	assert.Error(t, client.DeleteSubscription("audit"))
}

func TestClientAuth(t *testing.T) {
	store := treestore.New()
	t.Cleanup(func() { store.Close() })

	config := DefaultConfig()
	config.EnableMetrics = false
	config.LogRequests = false
	config.RateLimitRPS = 0
	config.EnableAuth = true
	config.AuthToken = "secret"

	ts := httptest.NewServer(NewAPIServer(store, config).Router())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL)
	require.NoError(t, err)

	_, err = client.ListNodes()
	assert.Error(t, err)

	client.SetToken("secret")
	nodes, err := client.ListNodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
