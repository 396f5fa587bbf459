package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/indexer"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/retriever"
	"github.com/ziadkadry99/hostkb/internal/session"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

const maxBodyBytes = 4 << 20

var errNotConfigured = apperr.Unavailable("server", errors.New("component not configured"))

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	var req indexer.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	res, err := s.deps.Pipeline.Ingest(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.deps.Documents == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	q := r.URL.Query()
	filter := documents.ListFilter{
		OwnerID: q.Get("owner_id"),
		Status:  documents.Status(q.Get("status")),
	}
	if v := q.Get("property_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, r, apperr.Validation("property_id", "must be an integer"), apperr.English)
			return
		}
		filter.PropertyID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	docs, err := s.deps.Documents.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.deps.Documents == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	doc, err := s.deps.Documents.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	res, err := s.deps.Pipeline.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type retrieveRequest struct {
	Query string `json:"query"`
	retriever.Options
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	req := retrieveRequest{Options: s.deps.RetrievalDefaults}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	lang := apperr.DetectLanguage(req.Query)
	resp, err := s.deps.Retriever.Retrieve(r.Context(), req.Query, req.Options)
	if err != nil {
		s.writeError(w, r, err, lang)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	SessionID  string          `json:"session_id"`
	Message    string          `json:"message"`
	OwnerID    string          `json:"owner_id,omitempty"`
	PropertyID *int64          `json:"property_id,omitempty"`
	Scope      documents.Scope `json:"kb_scope,omitempty"`
}

func (c chatRequest) toRequest(defaults retriever.Options) orchestrator.Request {
	scope := c.Scope
	if scope == "" {
		scope = defaults.Scope
	}
	return orchestrator.Request{
		SessionID: c.SessionID,
		Message:   c.Message,
		Scope:     tools.Scope{OwnerID: c.OwnerID, PropertyID: c.PropertyID, KBScope: scope},
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, apperr.English)
		return
	}
	res, err := s.deps.Assistant.Handle(r.Context(), req.toRequest(s.deps.RetrievalDefaults))
	if err != nil {
		s.writeError(w, r, err, apperr.DetectLanguage(req.Message))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type historyResponse struct {
	SessionID string             `json:"session_id"`
	Exchanges []session.Exchange `json:"exchanges"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Exchanges: s.deps.Sessions.History(id)})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		s.writeError(w, r, errNotConfigured, apperr.English)
		return
	}
	s.deps.Sessions.Clear(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "must be a positive integer")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		return apperr.Validation("body", "invalid JSON: %s", strings.TrimPrefix(msg, "json: "))
	}
	return nil
}
