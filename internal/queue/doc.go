// Package queue persists import sessions and the per-item progress of the
// publishing pipeline in SQLite.
//
// Every stage writes its outputs together with the advanced Stage marker in
// one UPDATE, so a crash between stages leaves the item resumable at the
// first unfinished stage. Recorded identifiers are never cleared except by
// ResetItem.
package queue
