package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/congruo/internal/handlers"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]RouteHandler

// RouteByMethod dispatches on the request method. Unmatched methods get a
// 405 with an Allow header and the same JSON error shape the handlers use.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	if handler, ok := routes[r.Method]; ok {
		handler(w, r)
		return
	}

	allowed := make([]string, 0, len(routes))
	for method := range routes {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// RouteCRUD wires the standard four methods; nil slots are not routed
func RouteCRUD(w http.ResponseWriter, r *http.Request, get, post, put, del RouteHandler) {
	routes := make(MethodRouter, 4)
	for method, handler := range map[string]RouteHandler{
		http.MethodGet:    get,
		http.MethodPost:   post,
		http.MethodPut:    put,
		http.MethodDelete: del,
	} {
		if handler != nil {
			routes[method] = handler
		}
	}
	RouteByMethod(w, r, routes)
}

// RouteResourceCollection handles the list + create pattern (GET, POST)
func RouteResourceCollection(w http.ResponseWriter, r *http.Request, list, create RouteHandler) {
	RouteCRUD(w, r, list, create, nil, nil)
}

// RouteResourceItem handles the get + update + delete pattern
func RouteResourceItem(w http.ResponseWriter, r *http.Request, get, update, del RouteHandler) {
	RouteCRUD(w, r, get, nil, update, del)
}
