// Package preflight provides readiness checks for the endpoints, wallet,
// and filesystem paths that bookpub depends on.
//
// These checks run in two contexts:
//   - The batch commands call RunAll before the first item. If any check
//     fails, the run stops before any fee is paid.
//   - The CLI "bookpub preflight" command renders every result as a table.
//
// Optional endpoints are skipped when they are not configured.
package preflight
