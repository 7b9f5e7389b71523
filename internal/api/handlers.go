package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

const (
	maxRequestBodySize       = 1 << 20 // 1 MB
	maxQueryLen              = 256
	maxAutocompletePrefixLen = 100
)

// Searcher is the search surface served over HTTP. None of its operations
// fail; degradation is reported inside the results.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) *models.SearchResponse
	Suggest(ctx context.Context, prefix string, limit int) []models.Suggestion
	Trending(ctx context.Context, limit int) []models.TrendingQuery
}

type Handler struct {
	searcher Searcher
	logger   *zap.Logger
}

func NewHandler(searcher Searcher, logger *zap.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		logger:   logger,
	}
}

// Search answers 200 for every well-formed request, including an empty
// query, which browses the catalog.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseSearchRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Query = truncate(req.Query, maxQueryLen)
	req.RequestID = requestID

	resp := h.searcher.Search(ctx, *req)
	if resp.Error != nil {
		h.logger.Warn("search degraded",
			zap.String("request_id", requestID),
			zap.String("query", req.Query),
			zap.String("error", *resp.Error),
		)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	prefix = truncate(prefix, maxAutocompletePrefixLen)

	suggestions := h.searcher.Suggest(r.Context(), prefix, intParam(r, "limit"))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":      prefix,
		"suggestions": suggestions,
	})
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	queries := h.searcher.Trending(r.Context(), intParam(r, "limit"))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"trending": queries,
	})
}

func (h *Handler) parseSearchRequest(r *http.Request) (*models.SearchRequest, error) {
	if r.Method == http.MethodPost {
		var req models.SearchRequest
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("request body is empty")
			}
			return nil, err
		}
		return &req, nil
	}

	q := r.URL.Query()
	req := &models.SearchRequest{
		Query:    q.Get("q"),
		Page:     intParam(r, "page"),
		PageSize: intParam(r, "pageSize"),
	}
	if req.PageSize == 0 {
		req.PageSize = intParam(r, "page_size")
	}
	if fresh, err := strconv.ParseBool(q.Get("force_fresh")); err == nil {
		req.ForceFresh = fresh
	}

	return req, nil
}

// intParam returns 0 for a missing or malformed parameter; the orchestrator
// applies the defaults.
func intParam(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: code})
}
