// Package models defines the client-side domain entities and the persistence contract for the Hatchly client.
//
// The package contains two categories of types:
//
// 1. Transient copies of backend-owned entities:
//   - [Session] : The authenticated identity
//   - [Prawn] : A registered prawn; the selected prawn drives the capture/predict workflow
//   - [Location] : A hatchery location prawns are assigned to
//   - [PredictionRecord] : A saved prediction in a prawn's history
//   - [DashboardSummary] : Aggregate counters and upcoming hatches
//
// 2. Workflow values produced on the client:
//   - [CapturedImage] : An encoded image tagged with its [ImageSource]
//   - [PredictionResult] : The backend's answer for one captured image
//
// [StateStore] is the key-value contract for state that must survive a restart.
// Keys are declared here so that every writer agrees on them.
package models
