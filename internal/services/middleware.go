package services

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Middleware wraps a transport to observe or alter every outbound request.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to [http.RoundTripper].
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps rt with middleware in reverse order, so the first one runs outermost.
func Chain(rt http.RoundTripper, middleware ...Middleware) http.RoundTripper {
	wrapped := rt
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}
	return wrapped
}

// AuthFailureMiddleware calls onFailure for every 401 response, whichever route produced it.
func AuthFailureMiddleware(onFailure func(*http.Request)) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				onFailure(req)
			}
			return resp, err
		})
	}
}

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			if err != nil {
				logger.Warn("request failed", "method", req.Method, "path", req.URL.Path, "error", err, "duration", time.Since(start))
				return resp, err
			}
			logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))
			return resp, err
		})
	}
}

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware stamps requests that lack one with a fresh [RequestIDHeader].
func RequestIDMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(req)
			}
			r := req.Clone(req.Context())
			r.Header.Set(RequestIDHeader, uuid.NewString())
			return next.RoundTrip(r)
		})
	}
}
