package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"bts-lite/treestore"
)

type createRootRequest struct {
	Value int `json:"value"`
}

type createChildRequest struct {
	Side  string `json:"side"`
	Value int    `json:"value"`
}

type updateNodeRequest struct {
	Value int `json:"value"`
}

type jqQueryRequest struct {
	Query string `json:"query"`
}

type createSubscriptionRequest struct {
	ID               string   `json:"id"`
	Script           string   `json:"script"`
	ExecutionTimeout int64    `json:"execution_timeout,omitempty"` // milliseconds
	EnableLogging    bool     `json:"enable_logging,omitempty"`
	StrictMode       bool     `json:"strict_mode,omitempty"`
	EventFilters     []string `json:"event_filters,omitempty"`
}

// POST /api/v1/tree/root -> 201, or 409 when a root already exists.
func (s *APIServer) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	var req createRootRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.sendErrorResponse(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	node, err := s.store.CreateRoot(req.Value)
	if err != nil {
		s.countOp("create_root", "conflict")
		s.sendErrorResponse(w, r, err.Error(), http.StatusConflict)
		return
	}

	s.countOp("create_root", "success")
	// Build the body from the creation snapshot; a re-read could observe a
	// concurrent delete and return an empty view.
	s.sendResponseWithMessage(w, r, node.AsView(""), "root created", http.StatusCreated)
}

// GET /api/v1/tree/root -> 200, or 204 when the tree is empty.
func (s *APIServer) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	root, ok := s.store.GetRoot()
	if !ok {
		s.countOp("get_root", "empty")
		s.sendResponseWithMessage(w, r, nil, "", http.StatusNoContent)
		return
	}

	s.countOp("get_root", "success")
	s.sendResponse(w, r, root.AsView(""))
}

// POST /api/v1/nodes/{id}/children -> 201, or 400 when the parent is missing,
// the slot is occupied or the side token is invalid.
func (s *APIServer) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	parentID := mux.Vars(r)["id"]

	var req createChildRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.sendErrorResponse(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	side, err := treestore.ParseSide(req.Side)
	if err != nil {
		s.countOp("create_child", "invalid_side")
		s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	node, err := s.store.CreateChild(parentID, side, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, treestore.ErrNotFound):
			s.countOp("create_child", "parent_missing")
		case errors.Is(err, treestore.ErrSlotOccupied):
			s.countOp("create_child", "slot_occupied")
		default:
			s.countOp("create_child", "error")
		}
		s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	s.countOp("create_child", "success")
	s.sendResponseWithMessage(w, r, node.AsView(parentID), "child created", http.StatusCreated)
}

// GET /api/v1/nodes/{id} -> 200, or 404 when the id is unknown.
func (s *APIServer) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, ok := s.store.View(id)
	if !ok {
		s.countOp("get_node", "not_found")
		s.sendErrorResponse(w, r, "node not found", http.StatusNotFound)
		return
	}

	s.countOp("get_node", "success")
	s.sendResponse(w, r, view)
}

// PUT /api/v1/nodes/{id} -> 204, or 404 when the id is unknown.
func (s *APIServer) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateNodeRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.sendErrorResponse(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if !s.store.Update(id, req.Value) {
		s.countOp("update", "not_found")
		s.sendErrorResponse(w, r, "node not found", http.StatusNotFound)
		return
	}

	s.countOp("update", "success")
	s.sendResponseWithMessage(w, r, nil, "", http.StatusNoContent)
}

// DELETE /api/v1/nodes/{id} -> 204, or 404 when the id is unknown. Removes
// the whole subtree.
func (s *APIServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.store.Delete(id) {
		s.countOp("delete", "not_found")
		s.sendErrorResponse(w, r, "node not found", http.StatusNotFound)
		return
	}

	s.countOp("delete", "success")
	s.sendResponseWithMessage(w, r, nil, "", http.StatusNoContent)
}

// GET /api/v1/nodes/{id}/parent -> 200 with the parent, 204 when the node is
// the root, 404 when the id is unknown. The three cases must stay distinct.
func (s *APIServer) handleGetParent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	parent, node := s.store.GetParentAndNode(id)
	switch {
	case node == nil:
		s.countOp("get_parent", "not_found")
		s.sendErrorResponse(w, r, "node not found", http.StatusNotFound)
	case parent == nil:
		s.countOp("get_parent", "root")
		s.sendResponseWithMessage(w, r, nil, "", http.StatusNoContent)
	default:
		s.countOp("get_parent", "success")
		view, ok := s.store.View(parent.ID)
		if !ok {
			// The parent vanished between the two lookups; serve the snapshot.
			view = parent.AsView("")
		}
		s.sendResponse(w, r, view)
	}
}

// GET /api/v1/nodes -> 200 with the level-order sequence.
func (s *APIServer) handleListNodes(w http.ResponseWriter, r *http.Request) {
	views := s.store.Views()
	s.countOp("list_nodes", "success")
	s.sendResponse(w, r, map[string]interface{}{
		"nodes": views,
		"total": len(views),
	})
}

// GET /api/v1/traverse?order= -> 200, or 400 for an unknown order token.
func (s *APIServer) handleTraverse(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("order")

	views, err := s.store.TraverseViews(order)
	if err != nil {
		s.countOp("traverse", "invalid_order")
		s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	s.countOp("traverse", "success")
	s.sendResponse(w, r, map[string]interface{}{
		"order": order,
		"nodes": views,
		"total": len(views),
	})
}

// POST /api/v1/query -> 200 with the jq result, 400 for a bad expression.
func (s *APIServer) handleJQQuery(w http.ResponseWriter, r *http.Request) {
	var req jqQueryRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.sendErrorResponse(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		s.sendErrorResponse(w, r, "jq query is required", http.StatusBadRequest)
		return
	}

	result, err := s.store.QueryJQ(r.Context(), req.Query)
	if err != nil {
		s.countOp("query", "error")
		s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	s.countOp("query", "success")
	s.sendResponse(w, r, map[string]interface{}{
		"result": result,
	})
}

// GET /api/v1/stats
func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	if s.metrics != nil {
		s.metrics.TreeNodes.Set(float64(stats.Nodes))
		s.metrics.TreeDepth.Set(float64(stats.Depth))
	}
	s.sendResponse(w, r, stats)
}

// Subscription handlers

func (s *APIServer) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.store.ListJSSubscriptions()
	s.sendResponse(w, r, map[string]interface{}{
		"subscriptions": subs,
		"total":         len(subs),
	})
}

func (s *APIServer) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := s.parseJSONBody(r, &req); err != nil {
		s.sendErrorResponse(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Script == "" {
		s.sendErrorResponse(w, r, "id and script are required", http.StatusBadRequest)
		return
	}

	filters := make([]treestore.EventType, 0, len(req.EventFilters))
	for _, f := range req.EventFilters {
		et, err := treestore.ParseEventType(f)
		if err != nil {
			s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		filters = append(filters, et)
	}

	config := &treestore.JSSubscriberConfig{
		ExecutionTimeout: time.Duration(req.ExecutionTimeout) * time.Millisecond,
		EnableLogging:    req.EnableLogging,
		StrictMode:       req.StrictMode,
		EventFilters:     filters,
	}

	if err := s.store.CreateJSSubscription(req.ID, req.Script, config); err != nil {
		if errors.Is(err, treestore.ErrSubscriptionExists) {
			s.sendErrorResponse(w, r, err.Error(), http.StatusConflict)
			return
		}
		s.sendErrorResponse(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	s.sendResponseWithMessage(w, r, map[string]interface{}{"id": req.ID}, "subscription created", http.StatusCreated)
}

func (s *APIServer) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.RemoveJSSubscription(id); err != nil {
		s.sendErrorResponse(w, r, err.Error(), http.StatusNotFound)
		return
	}
	s.sendResponseWithMessage(w, r, nil, "subscription removed", http.StatusOK)
}

// Ops handlers

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, map[string]interface{}{
		"status":    "healthy",
		"nodes":     s.store.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *APIServer) handleDocs(w http.ResponseWriter, r *http.Request) {
	type endpoint struct {
		Method string `json:"method"`
		Path   string `json:"path"`
		Desc   string `json:"description"`
	}
	endpoints := []endpoint{
		{"POST", "/api/v1/tree/root", "create the root node (409 if present)"},
		{"GET", "/api/v1/tree/root", "fetch the root node (204 if empty)"},
		{"POST", "/api/v1/nodes/{id}/children", "attach a left or right child"},
		{"GET", "/api/v1/nodes/{id}", "fetch one node"},
		{"PUT", "/api/v1/nodes/{id}", "update a node value"},
		{"DELETE", "/api/v1/nodes/{id}", "delete a node and its subtree"},
		{"GET", "/api/v1/nodes/{id}/parent", "fetch the parent (204 for the root)"},
		{"GET", "/api/v1/nodes", "list all nodes in level order"},
		{"GET", "/api/v1/traverse?order=", "preorder, inorder or postorder walk"},
		{"POST", "/api/v1/query", "run a jq expression over the node list"},
		{"GET", "/api/v1/stats", "tree statistics"},
		{"GET", "/api/v1/subscriptions", "list JS subscriptions"},
		{"POST", "/api/v1/subscriptions", "create a JS subscription"},
		{"DELETE", "/api/v1/subscriptions/{id}", "remove a JS subscription"},
		{"GET", "/api/v1/stream/sse", "live mutation events"},
		{"GET", "/api/v1/stream/jsonl", "level-order dump as JSON lines"},
	}
	s.sendResponse(w, r, map[string]interface{}{
		"endpoints": lo.Map(endpoints, func(e endpoint, _ int) map[string]string {
			return map[string]string{"method": e.Method, "path": e.Path, "description": e.Desc}
		}),
	})
}
