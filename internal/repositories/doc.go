// Package repositories implements SQLite persistence for client-side state.
//
// Key Implementations:
//   - [StateRepository] : string key-value store backing [models.StateStore]
//   - [ExportRunRepository] : history of exports written by the client
package repositories
