package handlers

import "net/http"

// QueueStats reports recalculations waiting on the debounce window.
type QueueStats interface {
	Pending() int
}

// FeedStats reports connected live-feed subscribers.
type FeedStats interface {
	Count() int
}

// NewHealthHandler returns GET /health handler. Either stats source may be nil.
func NewHealthHandler(queue QueueStats, feed FeedStats) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if queue != nil {
			body["pending_recalculations"] = queue.Pending()
		}
		if feed != nil {
			body["live_subscribers"] = feed.Count()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
