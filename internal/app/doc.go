// Package app owns the client state machine: the session, the navigation stack, the selected
// prawn, the captured image and the last prediction.
//
// # Views
//
// [App.Show] renders a [View], pushing it onto the [Navigator] stack; [App.ShowWithoutHistory]
// renders without pushing and [App.Back] pops. Every show stops the camera, runs the view's
// entry side effects and bumps a generation counter so data loads started for an earlier view
// are discarded when they complete.
//
// # Session
//
// [App.Restore] reconciles the persisted identity with the backend's session probe. A probe
// that cannot reach the backend is trusted (fail-open); an explicit rejection purges the
// persisted state. [App.Invalidate] is the single path for backend-reported auth failures and
// is wired to the HTTP middleware so any request can trigger it.
//
// # Errors
//
// Backend errors are converted to a [Notice] for the [Notifier] and returned to the caller.
// Validation errors are returned without a notice; they belong next to the offending field.
package app
