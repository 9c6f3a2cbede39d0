// Package repositories implements SQLite persistence for the download history.
//
// Key Implementations:
//   - [HistoryRepository] : runs and terminal downloads, with filtered listing, aggregate stats and pruning
//
// The schema lives in the embedded migrations of the shared package; callers open the database
// with [shared.OpenDatabase], which applies them.
package repositories
