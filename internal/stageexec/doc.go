// Package stageexec runs a single pipeline stage against an item and applies
// the persistence rules shared by every stage: processing status first,
// outputs and stage marker together on success, failed status with the error
// text on failure.
package stageexec
