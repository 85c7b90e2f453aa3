// Package services implements the HTTP client for the Hatchly backend.
//
// # Backend Interface
//
// [Backend] groups the logical operations the client consumes: authentication, prawn and
// location CRUD, prediction inference, prediction history, the dashboard aggregate and the
// networked camera proxy. [HatchlyService] implements it over JSON-over-HTTP.
//
// # Middleware
//
// Every request goes through a [Middleware] chain wrapped around the transport, applied in
// reverse order so the first registered middleware runs outermost. [AuthFailureMiddleware]
// reports 401 responses from any route so the application can invalidate the session in
// one place.
//
// # Session Cookies
//
// The backend keeps its session in a cookie. [StateJar] is an [http.CookieJar] that mirrors
// the cookies for the backend host into the persisted state store so a restart can reuse them.
//
// # Caching
//
// [CachingBackend] decorates a Backend with a short-lived list cache for prawns and
// locations. Any mutation flushes it.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : the backend answered 401
//   - [shared.ErrServiceUnavailable] : transport failure, the request was not applied
//   - [shared.ErrAPIRequest] : unexpected status or undecodable body
//   - [RejectedError] : a business-rule failure (success:false with a message)
//   - [PredictionError] : inference failed, possibly because no eggs were detected
package services
