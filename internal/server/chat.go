package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming websocket message format.
type wsRequest struct {
	Type       string          `json:"type"` // "message" or "reset"
	SessionID  string          `json:"session_id"`
	Content    string          `json:"content"`
	OwnerID    string          `json:"owner_id,omitempty"`
	PropertyID *int64          `json:"property_id,omitempty"`
	Scope      documents.Scope `json:"kb_scope,omitempty"`
}

// wsResponse is the outgoing websocket message format.
type wsResponse struct {
	Type      string            `json:"type"` // "response", "reset" or "error"
	SessionID string            `json:"session_id"`
	Content   string            `json:"content"`
	Path      orchestrator.Path `json:"path,omitempty"`
	ToolCalls int               `json:"tool_calls,omitempty"`
	Code      string            `json:"code,omitempty"`
}

// handleWebSocket serves a chat connection. Messages on one connection are
// answered in order; the session id of the first answer should be sent back
// with later messages to keep the conversation.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWS(conn, wsResponse{Type: "error", Content: "invalid message format", Code: "validation_error"})
			continue
		}

		switch req.Type {
		case "message", "":
			s.answerWS(conn, r, req)
		case "reset":
			if s.deps.Sessions != nil && req.SessionID != "" {
				s.deps.Sessions.Clear(req.SessionID)
			}
			s.sendWS(conn, wsResponse{Type: "reset", SessionID: req.SessionID})
		default:
			s.sendWS(conn, wsResponse{Type: "error", SessionID: req.SessionID, Content: "unknown message type: " + req.Type, Code: "validation_error"})
		}
	}
}

func (s *Server) answerWS(conn *websocket.Conn, r *http.Request, req wsRequest) {
	lang := apperr.DetectLanguage(req.Content)
	if s.deps.Assistant == nil {
		s.sendWS(conn, wsResponse{Type: "error", SessionID: req.SessionID, Content: apperr.UserMessage(errNotConfigured, lang), Code: apperr.Code(errNotConfigured)})
		return
	}

	creq := chatRequest{
		SessionID:  req.SessionID,
		Message:    req.Content,
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
		Scope:      req.Scope,
	}
	res, err := s.deps.Assistant.Handle(r.Context(), creq.toRequest(s.deps.RetrievalDefaults))
	if err != nil {
		s.logger.Warn("websocket chat failed", "session_id", req.SessionID, "error", err)
		s.sendWS(conn, wsResponse{Type: "error", SessionID: req.SessionID, Content: apperr.UserMessage(err, lang), Code: apperr.Code(err)})
		return
	}

	s.sendWS(conn, wsResponse{
		Type:      "response",
		SessionID: res.SessionID,
		Content:   res.Reply,
		Path:      res.Path,
		ToolCalls: len(res.ToolCalls),
	})
}

func (s *Server) sendWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
