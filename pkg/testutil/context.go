package testutil

import (
	"net/http"
	"time"

	"bizreg/pkg/requestcontext"
)

// WithRequestID stamps the request ID the request middleware would assign.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request clock, so control-number years and
// default timestamps are deterministic.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
