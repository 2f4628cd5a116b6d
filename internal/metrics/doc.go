// Package metrics records item outcomes and stage timings in a private
// Prometheus registry and pushes them to a pushgateway when one is configured.
package metrics
