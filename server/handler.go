package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agentstudio/ragchat/auth"
	apperrors "github.com/agentstudio/ragchat/errors"
	"github.com/agentstudio/ragchat/rag"
)

type ctxKey int

const requestIDKey ctxKey = iota

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ident, err := s.authenticate(r)
	if err != nil {
		// Auth failures stay generic so nothing about the token leaks.
		s.logger.Warn("authentication failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req rag.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.pipeline.Handle(r.Context(), ident.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, clientMessage(err))
		case errors.Is(err, apperrors.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		default:
			s.logger.Error("chat turn failed", "error", err, "request_id", requestIDFrom(r.Context()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authenticate(r *http.Request) (auth.Identity, error) {
	if s.verifier == nil {
		return auth.Identity{}, nil
	}
	return s.verifier.VerifyHeader(r.Header.Get("Authorization"))
}

// clientMessage strips the sentinel prefix so the client sees only the
// descriptive part of an input error.
func clientMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "success": false})
}
