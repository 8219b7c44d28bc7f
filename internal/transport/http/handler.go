// Package http exposes the session engine and status views to thin UIs:
// REST for one-shot snapshots and WebSocket for live session and countdown
// streams.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/session"
	"spaceforces-client/internal/statusview"
)

// SessionRegistry tracks active solving sessions per quiz.
type SessionRegistry interface {
	Register(quizID int64) (release func())
	Active(quizID int64) int
}

// Deps wires the handler's collaborators.
type Deps struct {
	Source       session.ContentSource
	Submitter    session.Submitter
	Participants statusview.ParticipantSource
	Registry     SessionRegistry
	// FetchConcurrency bounds the option fan-out when a session starts.
	FetchConcurrency int
}

type Handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router mounts all routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.HandleFunc("/api/quizzes/{quizID:[0-9]+}/status", h.QuizStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws/quizzes/{quizID:[0-9]+}/session", h.ServeSession)
	r.HandleFunc("/ws/quizzes/{quizID:[0-9]+}/status", h.ServeStatus)
	return r
}

type statusResponse struct {
	statusview.Snapshot
	ActiveSessions int `json:"activeSessions"`
}

// QuizStatus returns a one-shot status snapshot. Participant fetch failures
// degrade to an empty list; only a missing quiz fails the request.
func (h *Handler) QuizStatus(w http.ResponseWriter, r *http.Request) {
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

	var participants []domain.Participation
	if h.deps.Participants != nil {
		if snapshot, err := h.deps.Participants.Participants(r.Context(), quizID); err != nil {
			log.Printf("participants for quiz %d unavailable: %v", quizID, err)
		} else {
			participants = snapshot
		}
	}

	resp := statusResponse{Snapshot: statusview.Build(quiz, participants, timeNow())}
	if h.deps.Registry != nil {
		resp.ActiveSessions = h.deps.Registry.Active(quizID)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode status response: %v", err)
	}
}

func pathQuizID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["quizID"], 10, 64)
}

// timeNow is a hook for deterministic snapshots in tests.
var timeNow = time.Now
