package llm

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"

	"github.com/openai/openai-go"
)

type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindConnection ErrorKind = "connection"
	KindRateLimit  ErrorKind = "rate_limit"
	KindServer     ErrorKind = "server"
	KindOther      ErrorKind = "other"
)

// StatusError carries an HTTP status from a backend that only reports it in
// its error text.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

func withStatus(err error) error {
	if err == nil {
		return nil
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &StatusError{StatusCode: code, Err: err}
	}
	return err
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func Classify(err error) ErrorKind {
	if code, ok := statusCode(err); ok {
		switch {
		case code == 401 || code == 403:
			return KindAuth
		case code == 429:
			return KindRateLimit
		case code >= 500:
			return KindServer
		default:
			return KindOther
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	return KindOther
}

// IsTransient reports whether a failed call may succeed on retry.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case KindConnection, KindRateLimit, KindServer:
		return true
	}
	return false
}
