package http

import (
	"encoding/json"
	"log"
	"net/http"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/session"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
}

type advancePayload struct {
	Direction string `json:"direction"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ServeSession upgrades the connection and drives one quiz session over it.
// The session, its countdown, and the registry slot are all torn down when
// the socket closes, whichever side closes it.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathQuizID(r)
	if err != nil {
		http.Error(w, "invalid quiz id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := session.New(session.Config{
		Source:           h.deps.Source,
		Submitter:        h.deps.Submitter,
		QuizID:           quizID,
		FetchConcurrency: h.deps.FetchConcurrency,
	})
	defer sess.Close()

	if h.deps.Registry != nil {
		release := h.deps.Registry.Register(quizID)
		defer release()
	}

	if err := sess.Start(r.Context()); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{
			Message:   err.Error(),
			Retryable: domain.IsRetryable(err),
		}})
		return
	}

	updates, cancel := sess.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, sess, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
				Message:   err.Error(),
				Retryable: domain.IsRetryable(err),
			}}:
			case <-closeSignals:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *Handler) dispatch(r *http.Request, sess *session.Session, inbound inboundMessage) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return sess.SelectAnswer(payload.QuestionID, payload.OptionID)
	case "advance":
		var payload advancePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return sess.Advance(session.Direction(payload.Direction))
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return sess.GoTo(payload.Index)
	case "submit":
		_, err := sess.Submit(r.Context())
		return err
	default:
		return errUnsupportedType
	}
}
