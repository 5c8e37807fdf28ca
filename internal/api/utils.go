package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dermai-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

const maxUserIDLength = 50

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// statusResponse lets a handler return a body with a status other than 200.
type statusResponse struct {
	code int
	body any
}

func WithStatus(code int, body any) any {
	return statusResponse{code: code, body: body}
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	err := queryDecoder.Decode(&data, r.Form)
	if err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

func validateUserID(userID string) error {
	if len(userID) > maxUserIDLength {
		return CodedErrorf(http.StatusBadRequest, "user_id must be at most %d characters", maxUserIDLength)
	}
	return nil
}

func URLParamID(r *http.Request, key string) (uint, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return 0, CodedErrorf(http.StatusBadRequest, "missing {%v} url parameter", key)
	}

	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil || id == 0 {
		return 0, CodedErrorf(http.StatusBadRequest, "invalid %v '%v' url parameter provided", key, param)
	}

	return uint(id), nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			WriteError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		if sr, ok := res.(statusResponse); ok {
			writeJson(w, sr.code, sr.body)
			return
		}

		WriteJsonResponse(w, res)
	}
}

// WriteError renders err as the JSON error envelope. Uncoded errors are
// reported as 500 with the cause in details.
func WriteError(w http.ResponseWriter, err error) {
	resp := api.ErrorResponse{Success: false, Timestamp: time.Now().UTC()}

	var cerr *codedError
	if errors.As(err, &cerr) {
		resp.Error = err.Error()
		if cerr.code >= http.StatusInternalServerError {
			slog.Error("internal server error received in endpoint", "error", err)
		}
		writeJson(w, cerr.code, resp)
		return
	}

	slog.Error("recieved non coded error from endpoint", "error", err)
	resp.Error = "Internal server error occurred"
	resp.Details = err.Error()
	writeJson(w, http.StatusInternalServerError, resp)
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	writeJson(w, http.StatusOK, data)
}

func writeJson(w http.ResponseWriter, code int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}
