package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/FairForge/pollstore/internal/engine"
	"go.uber.org/zap"
)

// blobPath maps a request URL to a store key. The query string is ignored.
func blobPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/")
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := blobPath(r)
	if err := engine.ValidatePath(path); err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	body := r.Body
	if limit := s.config.Server.MaxBodyBytes; limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Debug("failed to read request body",
			zap.String("path", path),
			zap.Error(err))
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	// A fully received body is stored even if the client hangs up now.
	existed, err := s.store.Put(context.WithoutCancel(r.Context()), path, data)
	if err != nil {
		s.logger.Error("failed to store blob",
			zap.String("path", path),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.metrics.ObservePut(len(data), !existed)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := blobPath(r)

	blob, outcome, err := s.store.AwaitOrTimeout(r.Context(), path, s.config.Server.PollTimeout)
	if !errors.Is(err, engine.ErrInvalidPath) {
		s.metrics.ObservePoll(outcome.String())
	}

	switch {
	case err == nil:
		writeBlob(w, blob, true)
	case errors.Is(err, engine.ErrTimedOut):
		http.Error(w, "Not found", http.StatusNotFound)
	case outcome == engine.OutcomeCancelled:
		// The client is gone; nothing to answer.
		s.logger.Debug("client left while waiting",
			zap.String("path", path),
			zap.String("request_id", RequestIDFromContext(r.Context())))
	case errors.Is(err, engine.ErrInvalidPath):
		http.Error(w, "Invalid path", http.StatusBadRequest)
	default:
		s.logger.Error("failed to read blob",
			zap.String("path", path),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleHead answers from the current content only; it never waits.
func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	blob, err := s.store.Get(r.Context(), blobPath(r))
	switch {
	case err == nil:
		writeBlob(w, blob, false)
	case engine.IsNotFound(err):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalidPath):
		w.WriteHeader(http.StatusBadRequest)
	default:
		s.logger.Error("failed to stat blob",
			zap.String("path", blobPath(r)),
			zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not implemented", http.StatusInternalServerError)
}

func writeBlob(w http.ResponseWriter, blob engine.Blob, withBody bool) {
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(blob.Data)))
	if !blob.Modified.IsZero() {
		h.Set("Last-Modified", blob.Modified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if withBody {
		_, _ = w.Write(blob.Data)
	}
}
