package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // deployments front this with their own auth
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// wsOutgoing is a message to the client. Progress events carry whole
// per-participant messages; there is no token-level streaming.
type wsOutgoing struct {
	Type      string       `json:"type"` // message, complete, aborted, error
	Message   *llm.Message `json:"message,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Stage     string       `json:"stage,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// handleDebateWS runs debate cycles for a connected client, emitting each
// transcript message as it is produced. One debate at a time per connection.
func (s *Server) handleDebateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	logger := log.With().Str("conn_id", connID).Logger()
	logger.Info().Msg("debate feed connected")

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info().Msg("debate feed closed")
				return
			}
			logger.Warn().Err(err).Msg("websocket read failed")
			return
		}

		if msg.Type != "debate" || msg.Topic == "" {
			conn.WriteJSON(wsOutgoing{Type: "error", Error: "expected {type: debate, topic: ...}"})
			continue
		}

		cycle := debate.New(s.panel, s.store)
		cycle.OnMessage(func(m llm.Message) {
			if err := conn.WriteJSON(wsOutgoing{Type: "message", Message: &m}); err != nil {
				logger.Warn().Err(err).Msg("websocket write failed")
			}
		})

		sess, err := cycle.Run(r.Context(), msg.Topic)

		var aborted *debate.StageAbortedError
		switch {
		case err == nil:
			conn.WriteJSON(wsOutgoing{Type: "complete", SessionID: sess.ID})
		case errors.As(err, &aborted):
			conn.WriteJSON(wsOutgoing{Type: "aborted", SessionID: sess.ID, Stage: string(aborted.Stage)})
		default:
			out := wsOutgoing{Type: "error", Error: err.Error()}
			if sess != nil {
				out.SessionID = sess.ID
			}
			conn.WriteJSON(out)
		}
	}
}
