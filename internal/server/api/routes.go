package api

import "net/http"

// FeedPrefix is where the feed resource is mounted.
const FeedPrefix = "/api/v0/feed"

// RegisterRoutes mounts the feed endpoints on mux. requireAuth wraps the
// endpoints that sign uploads or create items.
func RegisterRoutes(mux *http.ServeMux, h *FeedHandler, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET "+FeedPrefix, h.List)
	mux.HandleFunc("GET "+FeedPrefix+"/{id}", h.Get)
	mux.Handle("GET "+FeedPrefix+"/signed-url/{fileName}", requireAuth(http.HandlerFunc(h.SignedURL)))
	mux.Handle("POST "+FeedPrefix, requireAuth(http.HandlerFunc(h.Create)))
}
