// Package logging assembles structured slog loggers for bookpub.
//
// The terminal stream is either a compact console format or JSON; when a log
// directory is configured every record is also written as JSON to a file
// rotated by lumberjack. Context helpers tag records with the item, session,
// and stage carried by the services context keys, and the no-op logger keeps
// tests and optional wiring quiet.
package logging
