package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"bts-lite/treestore"
)

// Client is a typed client for the tree store REST API. Endpoints may be
// plain host:port, http(s) URLs, or unix:// socket paths.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewClient creates a new API client for the given endpoint.
func NewClient(endpoint string) (*Client, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	baseURL := endpoint
	if strings.HasPrefix(endpoint, "unix://") {
		socketPath := strings.TrimPrefix(endpoint, "unix://")
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		}
		baseURL = "http://unix"
	} else if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		baseURL = "http://" + endpoint
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) request(method, endpoint string, body interface{}) (int, []byte, error) {
	url := c.baseURL + "/api/v1" + endpoint

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// call performs a request and decodes the envelope's data field into target
// (when target is non-nil). Non-2xx statuses become errors carrying the
// server's error message.
func (c *Client) call(method, endpoint string, body, target interface{}) (int, error) {
	status, respBody, err := c.request(method, endpoint, body)
	if err != nil {
		return status, err
	}

	if status >= 400 {
		msg := gjson.GetBytes(respBody, "error").String()
		if msg == "" {
			msg = http.StatusText(status)
		}
		return status, fmt.Errorf("%s (HTTP %d)", msg, status)
	}

	if target != nil && status != http.StatusNoContent {
		data := gjson.GetBytes(respBody, "data")
		if !data.Exists() {
			return status, fmt.Errorf("response has no data field")
		}
		if err := json.Unmarshal([]byte(data.Raw), target); err != nil {
			return status, fmt.Errorf("decoding response: %w", err)
		}
	}
	return status, nil
}

// CreateRoot creates the root node.
func (c *Client) CreateRoot(value int) (treestore.NodeView, error) {
	var view treestore.NodeView
	_, err := c.call("POST", "/tree/root", createRootRequest{Value: value}, &view)
	return view, err
}

// GetRoot fetches the root node; nil without error when the tree is empty.
func (c *Client) GetRoot() (*treestore.NodeView, error) {
	var view treestore.NodeView
	status, err := c.call("GET", "/tree/root", nil, &view)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &view, nil
}

// CreateChild attaches a child to the given side of a parent.
func (c *Client) CreateChild(parentID, side string, value int) (treestore.NodeView, error) {
	var view treestore.NodeView
	_, err := c.call("POST", "/nodes/"+parentID+"/children", createChildRequest{Side: side, Value: value}, &view)
	return view, err
}

// GetNode fetches one node.
func (c *Client) GetNode(id string) (treestore.NodeView, error) {
	var view treestore.NodeView
	_, err := c.call("GET", "/nodes/"+id, nil, &view)
	return view, err
}

// GetParent fetches a node's parent; nil without error when the node is the
// root. An unknown id is an error.
func (c *Client) GetParent(id string) (*treestore.NodeView, error) {
	var view treestore.NodeView
	status, err := c.call("GET", "/nodes/"+id+"/parent", nil, &view)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &view, nil
}

// UpdateNode replaces a node's value.
func (c *Client) UpdateNode(id string, value int) error {
	_, err := c.call("PUT", "/nodes/"+id, updateNodeRequest{Value: value}, nil)
	return err
}

// DeleteNode removes a node and its subtree.
func (c *Client) DeleteNode(id string) error {
	_, err := c.call("DELETE", "/nodes/"+id, nil, nil)
	return err
}

type nodeListResponse struct {
	Nodes []treestore.NodeView `json:"nodes"`
	Total int                  `json:"total"`
}

// ListNodes returns all nodes in level order.
func (c *Client) ListNodes() ([]treestore.NodeView, error) {
	var resp nodeListResponse
	_, err := c.call("GET", "/nodes", nil, &resp)
	return resp.Nodes, err
}

// Traverse returns the depth-first sequence for the given order token.
func (c *Client) Traverse(order string) ([]treestore.NodeView, error) {
	var resp nodeListResponse
	_, err := c.call("GET", "/traverse?order="+order, nil, &resp)
	return resp.Nodes, err
}

// Query runs a jq expression over the node list and returns the raw result.
func (c *Client) Query(expr string) (json.RawMessage, error) {
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	_, err := c.call("POST", "/query", jqQueryRequest{Query: expr}, &resp)
	return resp.Result, err
}

// Stats fetches the tree statistics.
func (c *Client) Stats() (treestore.Stats, error) {
	var stats treestore.Stats
	_, err := c.call("GET", "/stats", nil, &stats)
	return stats, err
}

// ListSubscriptions lists the registered JS subscriptions.
func (c *Client) ListSubscriptions() ([]treestore.SavedJSSubscription, error) {
	var resp struct {
		Subscriptions []treestore.SavedJSSubscription `json:"subscriptions"`
	}
	_, err := c.call("GET", "/subscriptions", nil, &resp)
	return resp.Subscriptions, err
}

// CreateSubscription registers a JS subscription.
func (c *Client) CreateSubscription(id, script string, eventFilters []string) error {
	req := createSubscriptionRequest{
		ID:            id,
		Script:        script,
		EnableLogging: true,
		EventFilters:  eventFilters,
	}
	_, err := c.call("POST", "/subscriptions", req, nil)
	return err
}

// DeleteSubscription removes a JS subscription.
func (c *Client) DeleteSubscription(id string) error {
	_, err := c.call("DELETE", "/subscriptions/"+id, nil, nil)
	return err
}

// StreamEvents opens the SSE stream. The caller owns the returned body and
// must close it.
func (c *Client) StreamEvents(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/stream/sse", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// No client timeout here: the stream stays open until ctx is cancelled.
	streamClient := &http.Client{Transport: c.client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed with HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}
