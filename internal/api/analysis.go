package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dermai-backend/internal/core"
	"dermai-backend/internal/database"
	"dermai-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

const (
	MaxImageSize = 10 * 1024 * 1024

	// Allowance for multipart boundaries and the user_id field.
	multipartOverhead = 1024 * 1024

	defaultUserID = "anonymous"
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

type AnalysisService struct {
	analyzer *core.Analyzer
	store    *database.Store
	limiter  *RateLimiter
}

func NewAnalysisService(analyzer *core.Analyzer, store *database.Store, limiter *RateLimiter) *AnalysisService {
	return &AnalysisService{analyzer: analyzer, store: store, limiter: limiter}
}

func (s *AnalysisService) AddRoutes(r chi.Router) {
	r.With(s.limiter.Middleware, limitBody(MaxImageSize+multipartOverhead)).Post("/analyze", RestHandler(s.Analyze))
	r.Route("/analysis", func(r chi.Router) {
		r.Get("/history", RestHandler(s.GetHistory))
		r.Post("/delete", RestHandler(s.DeleteAnalysis))
		r.Get("/{analysis_id}", RestHandler(s.GetAnalysis))
	})
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func tooLarge() error {
	return CodedErrorf(http.StatusBadRequest, "Image file too large. Maximum size is %dMB", MaxImageSize/(1024*1024))
}

func (s *AnalysisService) Analyze(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge()
		}
		slog.Error("error parsing multipart form", "error", err)
		return nil, CodedErrorf(http.StatusBadRequest, "No image file provided")
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "No image file provided")
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "No selected file")
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))]; !ok {
		return nil, CodedErrorf(http.StatusBadRequest, "Invalid file type")
	}
	if header.Size > MaxImageSize {
		return nil, tooLarge()
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		userID = defaultUserID
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "error reading uploaded image: %v", err)
	}
	if len(data) > MaxImageSize {
		return nil, tooLarge()
	}

	result, err := s.analyzer.Submit(r.Context(), userID, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidImage):
			return nil, CodedErrorf(http.StatusBadRequest, "%s", core.ValidationReason(err))
		case errors.Is(err, core.ErrModelNotReady):
			return nil, CodedError(http.StatusServiceUnavailable, core.ErrModelNotReady)
		default:
			slog.Error("error analyzing image", "user_id", userID, "filename", header.Filename, "error", err)
			return nil, fmt.Errorf("error analyzing image: %w", err)
		}
	}

	return api.AnalyzeResponse{
		Success:   true,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}, nil
}

func summarize(row database.SkinAnalysisResult) api.AnalysisSummary {
	return api.AnalysisSummary{
		ID:               row.ID,
		Timestamp:        row.Timestamp.UTC(),
		PrimaryCondition: row.PrimaryCondition,
		Confidence:       row.Confidence,
		DetailedAnalysis: core.DecodeDetailedAnalysis(row.DetailedAnalysis),
	}
}

func (s *AnalysisService) GetHistory(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.UserQuery](r)
	if err != nil {
		return nil, err
	}
	if params.UserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required parameter: user_id")
	}

	rows, err := s.store.ListAnalyses(r.Context(), params.UserID)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analysis history: %v", err)
	}

	history := make([]api.AnalysisSummary, 0, len(rows))
	for _, row := range rows {
		history = append(history, summarize(row))
	}

	return api.AnalysisHistoryResponse{
		Success:   true,
		History:   history,
		UserID:    params.UserID,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *AnalysisService) GetAnalysis(r *http.Request) (any, error) {
	id, err := URLParamID(r, "analysis_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.UserQuery](r)
	if err != nil {
		return nil, err
	}
	if params.UserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required parameter: user_id")
	}

	row, err := s.store.GetAnalysis(r.Context(), id, params.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Analysis not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analysis: %v", err)
	}

	return api.AnalysisDetailResponse{
		Success: true,
		Result: api.AnalysisDetail{
			AnalysisSummary: summarize(row),
			ImagePreview:    s.analyzer.Preview(r.Context(), row.ImagePath),
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *AnalysisService) DeleteAnalysis(r *http.Request) (any, error) {
	req, err := ParseRequest[api.DeleteAnalysisRequest](r)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing or invalid field: analysis_id")
	}
	if req.AnalysisID == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required field: analysis_id")
	}

	if err := s.analyzer.Delete(r.Context(), uint(*req.AnalysisID)); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Analysis not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting analysis: %v", err)
	}

	return api.MessageResponse{
		Success:   true,
		Message:   "Analysis deleted successfully",
		Timestamp: time.Now().UTC(),
	}, nil
}
