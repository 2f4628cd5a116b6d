// Package notifications delivers batch events to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured, so
// workflow code can call it unconditionally. The ntfy implementation also
// satisfies chain.BalanceReporter, which lets the balance guard alert an
// operator the moment a transaction is blocked.
package notifications
