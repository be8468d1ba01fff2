package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"evaluation-service/internal/app"
	"evaluation-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service  *app.EvaluationService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.EvaluationService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Question *int `json:"question,omitempty"`
	Option   int  `json:"option"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type confirmPayload struct {
	Confirmed bool `json:"confirmed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	Unanswered int               `json:"unanswered,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and drives one evaluation session.
// A new session is opened with ?quizId=&companyPin=; ?sessionId= re-attaches to a live one.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	sessionID := r.URL.Query().Get("sessionId")
	companyPIN := r.URL.Query().Get("companyPin")
	if quizID == "" && sessionID == "" {
		http.Error(w, "missing quizId or sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(r.Context())
	if sessionID == "" {
		st, err := h.service.Start(ctx, quizID, companyPIN)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
			return
		}
		sessionID = st.SessionID
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer h.service.Detach(ctx, sessionID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine; gorilla connections do not allow concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-writerDone:
					return
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
		msg, done := h.dispatch(ctx, sessionID, inbound)
		if msg != nil && !enqueue(send, writerDone, *msg) {
			break
		}
		if done {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch runs one command. State changes reach the client through the subscription,
// so only errors, reviews, outcomes and explicit state requests are returned here.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, inbound inboundMessage) (*outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "state":
		var st domain.SessionState
		if st, err = h.service.State(ctx, sessionID); err == nil {
			return &outboundMessage[any]{Type: "state", Payload: st}, false
		}
	case "identity":
		var payload domain.Respondent
		if err = decode(inbound.Payload, &payload); err == nil {
			_, err = h.service.SubmitIdentity(ctx, sessionID, payload)
		}
	case "answer":
		var payload answerPayload
		if err = decode(inbound.Payload, &payload); err == nil {
			if payload.Question != nil {
				_, err = h.service.Goto(ctx, sessionID, *payload.Question)
			}
			if err == nil {
				_, err = h.service.SelectAnswer(ctx, sessionID, payload.Option)
			}
		}
	case "goto":
		var payload gotoPayload
		if err = decode(inbound.Payload, &payload); err == nil {
			_, err = h.service.Goto(ctx, sessionID, payload.Index)
		}
	case "next":
		_, err = h.service.Next(ctx, sessionID)
	case "prev":
		_, err = h.service.Prev(ctx, sessionID)
	case "submit":
		var payload confirmPayload
		if err = decode(inbound.Payload, &payload); err == nil {
			_, err = h.service.Submit(ctx, sessionID, payload.Confirmed)
		}
	case "review":
		var review domain.Review
		if review, err = h.service.Review(ctx, sessionID); err == nil {
			return &outboundMessage[any]{Type: "review", Payload: review}, false
		}
	case "closeReview":
		_, err = h.service.CloseReview(ctx, sessionID)
	case "retry":
		var outcome *domain.Outcome
		if _, outcome, err = h.service.Retry(ctx, sessionID); err == nil && outcome != nil {
			return &outboundMessage[any]{Type: "outcome", Payload: outcome}, true
		}
	case "accept":
		var outcome domain.Outcome
		if outcome, err = h.service.Accept(ctx, sessionID); err == nil {
			return &outboundMessage[any]{Type: "outcome", Payload: outcome}, true
		}
	case "abandon":
		var payload confirmPayload
		if err = decode(inbound.Payload, &payload); err == nil {
			var outcome *domain.Outcome
			if outcome, err = h.service.Abandon(ctx, sessionID, payload.Confirmed); err == nil {
				return &outboundMessage[any]{Type: "closed", Payload: outcome}, true
			}
		}
	default:
		err = errUnsupported
	}
	if err == nil {
		return nil, false
	}
	done := errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionClosed)
	return &outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}, done
}

// enqueue hands msg to the writer goroutine. It reports false once the writer has stopped.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

var (
	errUnsupported = errors.New("unsupported message type")
	errBadPayload  = errors.New("invalid payload")
)

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	return nil
}

func toErrorPayload(err error) errorPayload {
	p := errorPayload{Code: "error", Message: err.Error()}
	var ve *domain.ValidationError
	var ce *domain.ConfirmationError
	switch {
	case errors.As(err, &ve):
		p.Code = "validation"
		p.Fields = ve.Fields
	case errors.As(err, &ce):
		p.Code = "confirmation_required"
		p.Unanswered = ce.Unanswered
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrInvalidQuiz):
		p.Code = "configuration"
	case errors.Is(err, domain.ErrInvalidPhase):
		p.Code = "invalid_phase"
	case errors.Is(err, domain.ErrQuestionOutOfRange), errors.Is(err, domain.ErrOptionOutOfRange):
		p.Code = "out_of_range"
	case errors.Is(err, domain.ErrSessionNotFound):
		p.Code = "session_not_found"
	case errors.Is(err, domain.ErrSessionClosed):
		p.Code = "session_closed"
	case errors.Is(err, errUnsupported), errors.Is(err, errBadPayload):
		p.Code = "bad_request"
	}
	return p
}
