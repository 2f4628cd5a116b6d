// Package services defines shared helpers consumed by the pipeline stages and
// their external integrations.
//
// It owns the error taxonomy: sentinel markers (payment, upload, mint,
// listing, balance, wallet) plus the Wrap helper that tags a failure with the
// stage and operation that produced it. Kind and IsBatchFatal classify those
// errors at the orchestrator and batch boundaries.
//
// The context helpers stamp item, session, stage, and correlation identifiers
// so loggers built through the logging package pick them up automatically.
package services
