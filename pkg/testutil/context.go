package testutil

import (
	"net/http"
	"time"

	"fluxmap/pkg/requestcontext"
)

// WithRequestID stamps a request ID on the request context, simulating the
// router middleware for handler tests that bypass it.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}

// WithClientMetadata adds client IP and user agent to the request context.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	ctx := requestcontext.WithClientIP(req.Context(), ip)
	ctx = requestcontext.WithUserAgent(ctx, userAgent)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request's observed time, for handlers that read
// the clock from the context.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
