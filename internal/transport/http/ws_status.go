package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/statusview"
)

var (
	errInvalidPayload  = errors.New("invalid message payload")
	errUnsupportedType = errors.New("unsupported message type")
)

// ServeStatus streams status snapshots for a quiz at one per second until
// the client disconnects. The watcher stops with the connection; no ticking
// outlives the view.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathQuizID(r)
	if err != nil {
		http.Error(w, "invalid quiz id", http.StatusBadRequest)
		return
	}

	quiz, err := h.deps.Source.Quiz(r.Context(), quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		http.Error(w, "quiz not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "quiz unavailable", http.StatusBadGateway)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	watcher := statusview.Watch(r.Context(), quiz, h.deps.Participants, time.Second)
	defer watcher.Close()

	// Reads are discarded; the loop exists to notice the peer going away.
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[statusview.Snapshot]{Type: "status", Payload: snap}); err != nil {
				return
			}
		case <-readerGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
