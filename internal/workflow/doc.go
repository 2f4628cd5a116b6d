// Package workflow drives publish items through the pipeline.
//
// The Orchestrator runs one item through uploads, asset class registration,
// minting, and listing, persisting the item after every stage so an
// interrupted run resumes at the first unfinished stage. Stages that already
// produced their outputs are skipped, which makes re-running a completed or
// partially completed item safe.
//
// Batch runs a session's items strictly one at a time under a lock file,
// records the resume cursor after each item, and isolates failures: a failed
// item is marked and the batch moves on. Only a missing wallet or a canceled
// context stops the whole batch.
package workflow
