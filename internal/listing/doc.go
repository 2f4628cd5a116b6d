// Package listing creates the storefront listing for a minted book on the
// commerce backend.
package listing
