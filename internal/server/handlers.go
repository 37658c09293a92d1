package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"newsdesk/internal/core"
	"newsdesk/internal/newsday"
	"newsdesk/internal/persistence"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// HealthResponse reports dependency checks
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps a page of results
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleListArticles handles GET /api/articles
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.pagination(w, r)
	if !ok {
		return
	}

	filter := persistence.ArticleFilter{
		Source: core.Source(r.URL.Query().Get("source")),
		Limit:  limit,
		Offset: offset,
	}
	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := newsday.Parse(date); err != nil {
			s.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		filter.CollectionDate = date
	}

	articles, err := s.db.Articles().List(r.Context(), filter)
	if err != nil {
		s.log.Error("Failed to list articles", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	if articles == nil {
		articles = []core.Article{}
	}

	s.respondJSON(w, http.StatusOK, ListResponse[core.Article]{
		Data:   articles,
		Count:  len(articles),
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetArticle handles GET /api/articles/{id}
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := s.db.Articles().Get(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err, "article")
		return
	}

	s.respondJSON(w, http.StatusOK, article)
}

// handleGetCritique handles GET /api/articles/{id}/critique
func (s *Server) handleGetCritique(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	critique, err := s.db.Critiques().Get(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err, "critique")
		return
	}

	s.respondJSON(w, http.StatusOK, critique)
}

// handleListAnalyses handles GET /api/analyses
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.pagination(w, r)
	if !ok {
		return
	}

	results, err := s.db.Analyses().List(r.Context(), persistence.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.log.Error("Failed to list analyses", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if results == nil {
		results = []core.AnalysisResult{}
	}

	s.respondJSON(w, http.StatusOK, ListResponse[core.AnalysisResult]{
		Data:   results,
		Count:  len(results),
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetAnalysis handles GET /api/analyses/{date}
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := newsday.Parse(date); err != nil {
		s.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	result, err := s.db.Analyses().Get(r.Context(), date)
	if err != nil {
		s.respondLookupError(w, err, "analysis")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, core.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.log.Error("Lookup failed", "resource", what, "error", err)
	s.respondError(w, http.StatusInternalServerError, "failed to load "+what)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
